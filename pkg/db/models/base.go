package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ensureID assigns a v4 id before insert so rows get identifiers on every
// dialect, including ones without gen_random_uuid().
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (s *Shop) BeforeCreate(*gorm.DB) error        { ensureID(&s.ID); return nil }
func (p *Product) BeforeCreate(*gorm.DB) error     { ensureID(&p.ID); return nil }
func (c *Customer) BeforeCreate(*gorm.DB) error    { ensureID(&c.ID); return nil }
func (c *Cart) BeforeCreate(*gorm.DB) error        { ensureID(&c.ID); return nil }
func (c *CartItem) BeforeCreate(*gorm.DB) error    { ensureID(&c.ID); return nil }
func (o *Order) BeforeCreate(*gorm.DB) error       { ensureID(&o.ID); return nil }
func (o *OrderItem) BeforeCreate(*gorm.DB) error   { ensureID(&o.ID); return nil }
func (p *Payment) BeforeCreate(*gorm.DB) error     { ensureID(&p.ID); return nil }
func (m *ChatMessage) BeforeCreate(*gorm.DB) error { ensureID(&m.ID); return nil }

// All lists every persisted model; used by AutoMigrate in dev and tests.
func All() []any {
	return []any{
		&Shop{},
		&Product{},
		&Customer{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&Payment{},
		&ChatMessage{},
	}
}
