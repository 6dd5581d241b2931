package records

import (
	"context"
)

// Kind describes how one record type is presented and bound to forms
type Kind[T Record] struct {
	// Title is the singular display name, "Expense" or "Income"
	Title string
	// Path is the mount point of the routes, "/expenses" or "/income"
	Path       string
	DateField  string
	LabelField string
	IndexView  string
	FormView   string

	New     func() T
	Apply   func(T, Values)
	Form    func(T) Form
	Options func(ctx context.Context) ([]string, error)
}

// ExpenseKind binds expenses to /expenses
func ExpenseKind(options *Options) Kind[*Expense] {
	return Kind[*Expense]{
		Title:      "Expense",
		Path:       "/expenses",
		DateField:  "expense_date",
		LabelField: "category",
		IndexView:  "expenses/index",
		FormView:   "expenses/form",
		New:        func() *Expense { return &Expense{} },
		Apply: func(e *Expense, v Values) {
			e.Amount = v.Amount
			e.Description = v.Description
			e.Date = v.Date
			e.Category = v.Label
		},
		Form: func(e *Expense) Form {
			return Form{
				Amount:      formatAmount(e.Amount),
				Description: e.Description,
				Date:        e.Date.Format(DateLayout),
				Label:       e.Category,
			}
		},
		Options: options.Categories,
	}
}

// IncomeKind binds incomes to /income
func IncomeKind(options *Options) Kind[*Income] {
	return Kind[*Income]{
		Title:      "Income",
		Path:       "/income",
		DateField:  "income_date",
		LabelField: "source",
		IndexView:  "income/index",
		FormView:   "income/form",
		New:        func() *Income { return &Income{} },
		Apply: func(i *Income, v Values) {
			i.Amount = v.Amount
			i.Description = v.Description
			i.Date = v.Date
			i.Source = v.Label
		},
		Form: func(i *Income) Form {
			return Form{
				Amount:      formatAmount(i.Amount),
				Description: i.Description,
				Date:        i.Date.Format(DateLayout),
				Label:       i.Source,
			}
		},
		Options: options.Sources,
	}
}
