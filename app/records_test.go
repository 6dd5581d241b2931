package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-expense-tracker/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expenseForm(amount, description, category, date string) url.Values {
	return url.Values{
		"amount":       {amount},
		"description":  {description},
		"category":     {category},
		"expense_date": {date},
	}
}

func TestExpensesAreScopedToOwner(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	alice := activeUser(t, a, "alice", "secret1")
	activeUser(t, a, "bob", "secret2")

	aliceClient := loggedIn(t, a, "alice", "secret1")
	bobClient := loggedIn(t, a, "bob", "secret2")

	res := aliceClient.post("/expenses/add", expenseForm("12.50", "groceries", "Food", "2024-03-09"))
	require.Equal(t, fiber.StatusFound, res.Status, res.Body)
	assert.Equal(t, "/expenses", res.Location)

	res = aliceClient.get("/expenses")
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.Contains(t, res.Body, "Expense saved successfully")
	assert.Contains(t, res.Body, "groceries")
	assert.Contains(t, res.Body, "12.50")

	store := records.NewExpenseStore(a.DB())
	list, total, err := store.ListByOwner(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	expense := list[0]
	assert.Equal(t, "Food", expense.Category)
	assert.Equal(t, "2024-03-09", expense.Date.Format(records.DateLayout))

	base := fmt.Sprintf("/expenses/%s", expense.ID)

	t.Run("other owners can not see it", func(t *testing.T) {
		res := bobClient.get("/expenses")
		require.Equal(t, fiber.StatusOK, res.Status)
		assert.NotContains(t, res.Body, "groceries")

		res = bobClient.get(base)
		assert.Equal(t, fiber.StatusNotFound, res.Status)
		assert.JSONEq(t, `{"error":"not found"}`, res.Body)

		res = bobClient.get(base + "/edit")
		require.Equal(t, fiber.StatusFound, res.Status)
		assert.Equal(t, "/expenses", res.Location)
	})

	t.Run("other owners can not change it", func(t *testing.T) {
		res := bobClient.post(base+"/edit", expenseForm("1", "hijacked", "Rent", "2024-03-10"))
		require.Equal(t, fiber.StatusFound, res.Status)
		assert.Equal(t, "/expenses", res.Location)

		res = bobClient.post(base+"/delete", nil)
		require.Equal(t, fiber.StatusFound, res.Status)
		assert.Equal(t, "/expenses", res.Location)

		got, err := store.GetByOwner(ctx, alice.ID, expense.ID)
		require.NoError(t, err)
		assert.Equal(t, "groceries", got.Description)
		assert.InDelta(t, 12.5, got.Amount, 0.001)
	})

	t.Run("owner reads it as JSON", func(t *testing.T) {
		res := aliceClient.get(base)
		require.Equal(t, fiber.StatusOK, res.Status)

		var payload map[string]any
		require.NoError(t, json.Unmarshal([]byte(res.Body), &payload))
		assert.Equal(t, "groceries", payload["description"])
		assert.Equal(t, "Food", payload["category"])
	})

	t.Run("owner edits it", func(t *testing.T) {
		res := aliceClient.get(base + "/edit")
		require.Equal(t, fiber.StatusOK, res.Status)
		assert.Contains(t, res.Body, `value="groceries"`)
		assert.Contains(t, res.Body, `value="2024-03-09"`)

		res = aliceClient.post(base+"/edit", expenseForm("20", "weekly groceries", "Food", "2024-03-10"))
		require.Equal(t, fiber.StatusFound, res.Status)

		got, err := store.GetByOwner(ctx, alice.ID, expense.ID)
		require.NoError(t, err)
		assert.Equal(t, "weekly groceries", got.Description)
		assert.InDelta(t, 20, got.Amount, 0.001)
		assert.Equal(t, alice.ID, got.OwnerID)

		res = aliceClient.get("/expenses")
		assert.Contains(t, res.Body, "Expense updated successfully")
	})

	t.Run("owner deletes it", func(t *testing.T) {
		res := aliceClient.post(base+"/delete", nil)
		require.Equal(t, fiber.StatusFound, res.Status)

		_, total, err := store.ListByOwner(ctx, alice.ID)
		require.NoError(t, err)
		assert.Zero(t, total)

		res = aliceClient.get("/expenses")
		assert.Contains(t, res.Body, "Expense removed")
	})
}

func TestExpenseFormValidation(t *testing.T) {
	a, _ := newTestApp(t)
	activeUser(t, a, "alice", "secret1")
	c := loggedIn(t, a, "alice", "secret1")

	res := c.get("/expenses/add")
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.Contains(t, res.Body, `<option value="Food"`)
	assert.Contains(t, res.Body, `name="expense_date"`)

	res = c.post("/expenses/add", expenseForm("", "", "Food", ""))
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.Contains(t, res.Body, "Amount is required")
	assert.Contains(t, res.Body, "Description is required")

	res = c.post("/expenses/add", expenseForm("-3", "refund", "Food", "2024-03-09"))
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.Contains(t, res.Body, "must be greater than zero")

	res = c.post("/expenses/add", expenseForm("3", "coffee", "Food", "09/03/2024"))
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.Contains(t, res.Body, "must be a valid date")
}

func TestIncomeCRUD(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	alice := activeUser(t, a, "alice", "secret1")
	c := loggedIn(t, a, "alice", "secret1")

	res := c.get("/income/add")
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.Contains(t, res.Body, `<option value="Salary"`)

	res = c.post("/income/add", url.Values{
		"amount":      {"2500"},
		"description": {"march pay"},
		"source":      {"Salary"},
		"income_date": {""},
	})
	require.Equal(t, fiber.StatusFound, res.Status, res.Body)
	assert.Equal(t, "/income", res.Location)

	res = c.get("/income")
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.Contains(t, res.Body, "Income saved successfully")
	assert.Contains(t, res.Body, "march pay")

	list, total, err := records.NewIncomeStore(a.DB()).ListByOwner(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "Salary", list[0].Source)
	assert.False(t, list[0].Date.IsZero(), "an empty date defaults to today")
}

func TestExpenseListIsPaged(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	alice := activeUser(t, a, "alice", "secret1")
	store := records.NewExpenseStore(a.DB())

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < records.PageSize+2; i++ {
		_, err := store.CreateForOwner(ctx, alice.ID, &records.Expense{
			Amount:      1,
			Date:        start.AddDate(0, 0, i),
			Description: fmt.Sprintf("item-%02d", i),
			Category:    "Food",
		})
		require.NoError(t, err)
	}

	aliceClient := loggedIn(t, a, "alice", "secret1")

	res := aliceClient.get("/expenses")
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.Contains(t, res.Body, fmt.Sprintf("item-%02d", records.PageSize+1))
	assert.NotContains(t, res.Body, "item-00")
	assert.Contains(t, res.Body, "/expenses?page=2")
	assert.NotContains(t, res.Body, "/expenses?page=0")

	res = aliceClient.get("/expenses?page=2")
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.Contains(t, res.Body, "item-00")
	assert.Contains(t, res.Body, "item-01")
	assert.NotContains(t, res.Body, "item-02")
	assert.Contains(t, res.Body, "/expenses?page=1")
	assert.NotContains(t, res.Body, "/expenses?page=3")

	res = aliceClient.get("/expenses?page=-4")
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.Contains(t, res.Body, "/expenses?page=2")
}
