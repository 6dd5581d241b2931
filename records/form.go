package records

import (
	"errors"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gofiber/fiber/v2"
)

// Form is the submitted add/edit form of a record. Label holds the
// category of an expense or the source of an income.
type Form struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Label       string `json:"label"`
}

// Values are the parsed form values
type Values struct {
	Amount      float64
	Description string
	Date        time.Time
	Label       string
}

var errNotPositive = errors.New("must be greater than zero")

// Validate will run validation rules
func (f Form) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Amount,
			validation.Required.Error("Amount is required"),
			is.Float,
			validation.By(positiveAmount),
		),
		validation.Field(&f.Description,
			validation.Required.Error("Description is required"),
			validation.Length(1, 1024),
		),
		validation.Field(&f.Date, validation.Date(DateLayout)),
		validation.Field(&f.Label, validation.Required, validation.Length(1, 266)),
	)
}

func positiveAmount(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	if n <= 0 {
		return errNotPositive
	}
	return nil
}

// Values parses a validated form, an empty date means today
func (f Form) Values(now time.Time) (Values, error) {
	amount, err := strconv.ParseFloat(f.Amount, 64)
	if err != nil {
		return Values{}, err
	}

	date := now.UTC().Truncate(24 * time.Hour)
	if f.Date != "" {
		date, err = time.Parse(DateLayout, f.Date)
		if err != nil {
			return Values{}, err
		}
	}

	return Values{
		Amount:      amount,
		Description: f.Description,
		Date:        date,
		Label:       f.Label,
	}, nil
}

func readForm(ctx *fiber.Ctx, dateField, labelField string) Form {
	return Form{
		Amount:      strings.TrimSpace(ctx.FormValue("amount")),
		Description: strings.TrimSpace(ctx.FormValue("description")),
		Date:        strings.TrimSpace(ctx.FormValue(dateField)),
		Label:       strings.TrimSpace(ctx.FormValue(labelField)),
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
