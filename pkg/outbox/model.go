package outbox

import "time"

// Model — строка таблицы order_outbox.
// idx_outbox_pending покрывает выборку GetUnprocessed: processed_at IS NULL по aggregate_type.
type Model struct {
	ID            string     `gorm:"column:id;type:varchar(36);primaryKey"`
	AggregateType string     `gorm:"column:aggregate_type;type:varchar(50);not null;index:idx_outbox_pending,priority:2"`
	AggregateID   string     `gorm:"column:aggregate_id;type:varchar(36);not null;index:idx_outbox_aggregate"`
	EventType     string     `gorm:"column:event_type;type:varchar(100);not null"`
	Topic         string     `gorm:"column:topic;type:varchar(100);not null"`
	MessageKey    string     `gorm:"column:message_key;type:varchar(100);not null"`
	Payload       []byte     `gorm:"column:payload;type:json;not null"`
	Headers       []byte     `gorm:"column:headers;type:json"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	ProcessedAt   *time.Time `gorm:"column:processed_at;index:idx_outbox_pending,priority:1"`
	RetryCount    int        `gorm:"column:retry_count;not null;default:0"`
	LastError     *string    `gorm:"column:last_error;type:text"`
}

func (Model) TableName() string {
	return "order_outbox"
}

func (m *Model) record() *Outbox {
	o := &Outbox{
		ID:            m.ID,
		AggregateType: m.AggregateType,
		AggregateID:   m.AggregateID,
		EventType:     m.EventType,
		Topic:         m.Topic,
		MessageKey:    m.MessageKey,
		Payload:       m.Payload,
		CreatedAt:     m.CreatedAt,
		ProcessedAt:   m.ProcessedAt,
		RetryCount:    m.RetryCount,
		LastError:     m.LastError,
	}
	// Битые headers не должны блокировать доставку payload
	_ = o.SetHeadersFromJSON(m.Headers)
	return o
}

func newModel(o *Outbox) *Model {
	headers, _ := o.HeadersJSON()
	return &Model{
		ID:            o.ID,
		AggregateType: o.AggregateType,
		AggregateID:   o.AggregateID,
		EventType:     o.EventType,
		Topic:         o.Topic,
		MessageKey:    o.MessageKey,
		Payload:       o.Payload,
		Headers:       headers,
		CreatedAt:     o.CreatedAt,
		ProcessedAt:   o.ProcessedAt,
		RetryCount:    o.RetryCount,
		LastError:     o.LastError,
	}
}
