package store

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lk2023060901/parallax-connect/internal/chat/transcript"
	"github.com/lk2023060901/parallax-connect/internal/chat/types"
	"github.com/lk2023060901/parallax-connect/internal/pkg/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessagesJSON 消息列表的 JSONB 列类型
type MessagesJSON []any

func (j *MessagesJSON) Scan(value interface{}) error {
	if value == nil {
		*j = MessagesJSON{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("store: cannot scan %T into messages", value)
	}
	return json.Unmarshal(data, j)
}

func (j MessagesJSON) Value() (driver.Value, error) {
	if j == nil {
		return json.Marshal([]any{})
	}
	return json.Marshal([]any(j))
}

// SessionPO 会话数据库模型
type SessionPO struct {
	ID          string       `gorm:"size:64;primarykey"`
	Title       string       `gorm:"size:255;not null;default:''"`
	Messages    MessagesJSON `gorm:"type:jsonb;not null;default:'[]'"`
	Timestamp   time.Time    `gorm:"not null;index:idx_chat_sessions_timestamp"`
	IsImportant bool         `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (SessionPO) TableName() string {
	return "chat_sessions"
}

func toPO(s types.ChatSession) *SessionPO {
	return &SessionPO{
		ID:          s.ID,
		Title:       s.Title,
		Messages:    transcript.MessagesToPersistable(s.Messages),
		Timestamp:   s.Timestamp.UTC(),
		IsImportant: s.IsImportant,
	}
}

func fromPO(po *SessionPO) (types.ChatSession, error) {
	messages, err := transcript.MessagesFromPersistable(po.Messages)
	if err != nil {
		return types.ChatSession{}, fmt.Errorf("store: session %s: %w", po.ID, err)
	}
	return types.ChatSession{
		ID:          po.ID,
		Title:       po.Title,
		Messages:    messages,
		Timestamp:   po.Timestamp.UTC(),
		IsImportant: po.IsImportant,
	}, nil
}

// GormStore 基于 PostgreSQL 的会话仓储
type GormStore struct {
	db *database.DB
}

// NewGormStore 创建会话仓储并按配置迁移表结构
func NewGormStore(db *database.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&SessionPO{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// Save 插入或覆盖会话
func (r *GormStore) Save(ctx context.Context, s types.ChatSession) error {
	if err := checkID(s.ID); err != nil {
		return err
	}
	po := toPO(s)
	return r.db.Transaction(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "messages", "timestamp", "is_important", "updated_at"}),
		}).Create(po).Error
	})
}

// Get 根据 ID 获取会话
func (r *GormStore) Get(ctx context.Context, id string) (types.ChatSession, error) {
	var po SessionPO
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&po).Error
	if database.IsRecordNotFoundError(err) {
		return types.ChatSession{}, ErrNotFound
	}
	if err != nil {
		return types.ChatSession{}, err
	}
	return fromPO(&po)
}

// List 列出全部会话（重要会话优先，其次按时间倒序）
func (r *GormStore) List(ctx context.Context) ([]types.ChatSession, error) {
	var pos []SessionPO
	if err := r.db.WithContext(ctx).Order("is_important DESC, timestamp DESC, id ASC").Find(&pos).Error; err != nil {
		return nil, err
	}
	out := make([]types.ChatSession, 0, len(pos))
	for i := range pos {
		s, err := fromPO(&pos[i])
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Delete 删除会话
func (r *GormStore) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&SessionPO{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
