package records

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DateLayout is the layout of dates in forms and JSON
const DateLayout = "2006-01-02"

// Record is an entry owned by a single user
type Record interface {
	GetID() uuid.UUID
	SetID(id uuid.UUID)
	GetOwnerID() uuid.UUID
	SetOwnerID(id uuid.UUID)
	// EditableColumns are the columns an owner may change, with their
	// current values
	EditableColumns() map[string]any
}

// Expense is money that left the owner's pocket
type Expense struct {
	bun.BaseModel `bun:"table:expenses,alias:exp"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	OwnerID       uuid.UUID  `bun:"owner_id,notnull,type:uuid" json:"owner_id"`
	Amount        float64    `bun:"amount,notnull" json:"amount"`
	Date          time.Time  `bun:"date,notnull" json:"date"`
	Description   string     `bun:"description,notnull" json:"description"`
	Category      string     `bun:"category,notnull" json:"category"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

func (e *Expense) GetID() uuid.UUID        { return e.ID }
func (e *Expense) SetID(id uuid.UUID)      { e.ID = id }
func (e *Expense) GetOwnerID() uuid.UUID   { return e.OwnerID }
func (e *Expense) SetOwnerID(id uuid.UUID) { e.OwnerID = id }

func (e *Expense) EditableColumns() map[string]any {
	return map[string]any{
		"amount":      e.Amount,
		"date":        e.Date,
		"description": e.Description,
		"category":    e.Category,
	}
}

func (e *Expense) String() string { return e.Category }

// Income is money the owner received
type Income struct {
	bun.BaseModel `bun:"table:incomes,alias:inc"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	OwnerID       uuid.UUID  `bun:"owner_id,notnull,type:uuid" json:"owner_id"`
	Amount        float64    `bun:"amount,notnull" json:"amount"`
	Date          time.Time  `bun:"date,notnull" json:"date"`
	Description   string     `bun:"description,notnull" json:"description"`
	Source        string     `bun:"source,notnull" json:"source"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

func (i *Income) GetID() uuid.UUID        { return i.ID }
func (i *Income) SetID(id uuid.UUID)      { i.ID = id }
func (i *Income) GetOwnerID() uuid.UUID   { return i.OwnerID }
func (i *Income) SetOwnerID(id uuid.UUID) { i.OwnerID = id }

func (i *Income) EditableColumns() map[string]any {
	return map[string]any{
		"amount":      i.Amount,
		"date":        i.Date,
		"description": i.Description,
		"source":      i.Source,
	}
}

func (i *Income) String() string { return i.Source }

// Category is a selectable expense category
type Category struct {
	bun.BaseModel `bun:"table:categories,alias:cat"`
	ID            int64  `bun:"id,pk,autoincrement" json:"id"`
	Name          string `bun:"name,notnull,unique" json:"name"`
}

func (c *Category) String() string { return c.Name }

// Source is a selectable income source
type Source struct {
	bun.BaseModel `bun:"table:sources,alias:src"`
	ID            int64  `bun:"id,pk,autoincrement" json:"id"`
	Name          string `bun:"name,notnull,unique" json:"name"`
}

func (s *Source) String() string { return s.Name }
