package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DateLayout is the wire and storage format of a transaction date.
	DateLayout = "2006-01-02"

	// MaxTextLength bounds user_id, title and category (VARCHAR(255) columns).
	MaxTextLength = 255
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is a single persisted ledger entry. A positive amount is income,
	// a negative amount is an expense.
	Transaction struct {
		ID        int64  `json:"id"`
		UserID    string `json:"user_id"`
		Title     string `json:"title"`
		Amount    Money  `json:"amount"`
		Category  string `json:"category"`
		CreatedAt Date   `json:"created_at"`
	}

	// NewTransaction holds validated fields for an insert. The store assigns
	// the id and, when CreatedAt is zero, the insertion date.
	NewTransaction struct {
		UserID    string
		Title     string
		Amount    Money
		Category  string
		CreatedAt Date
	}

	// TransactionPatch lists the mutable fields of a transaction; nil fields
	// are left unchanged.
	TransactionPatch struct {
		Title    *string
		Amount   *Money
		Category *string
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current UTC date.
func Today() Date {
	return DateOf(time.Now())
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD date. Longer timestamps keep only their date part.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (n NewTransaction) Validate() error {
	if err := validateText("user_id", n.UserID); err != nil {
		return err
	}
	if err := validateText("title", n.Title); err != nil {
		return err
	}
	if err := validateText("category", n.Category); err != nil {
		return err
	}
	return n.Amount.Validate()
}

func (p TransactionPatch) Validate() error {
	if p.Title == nil && p.Amount == nil && p.Category == nil {
		return &ValidationError{Field: "body", Reason: "must set at least one of title, amount, category"}
	}
	if p.Title != nil {
		if err := validateText("title", *p.Title); err != nil {
			return err
		}
	}
	if p.Category != nil {
		if err := validateText("category", *p.Category); err != nil {
			return err
		}
	}
	if p.Amount != nil {
		return p.Amount.Validate()
	}
	return nil
}

func validateText(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	if utf8.RuneCountInString(v) > MaxTextLength {
		return &ValidationError{Field: field, Reason: "must be at most 255 characters"}
	}
	return nil
}

// Apply returns t with the patch applied.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	return t
}
