package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/tripkit/internal/app"
	"github.com/hpungsan/tripkit/internal/checklist"
	"github.com/hpungsan/tripkit/internal/errors"
	"github.com/hpungsan/tripkit/internal/expense"
	"github.com/hpungsan/tripkit/internal/itinerary"
	"github.com/hpungsan/tripkit/internal/trip"
	"github.com/hpungsan/tripkit/internal/voucher"
	"github.com/hpungsan/tripkit/internal/weather"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	app *app.App
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(a *app.App) *Handlers {
	return &Handlers{app: a}
}

// Request types for each tool

// ShowRequest represents the arguments for itinerary_show.
type ShowRequest struct {
	DayID *int `json:"day_id,omitempty"`
}

// CheckInRequest represents the arguments for itinerary_check_in and
// itinerary_clear_check_in.
type CheckInRequest struct {
	ItemID int64  `json:"item_id"`
	Kind   string `json:"kind,omitempty"`
}

// SetTimeRequest represents the arguments for itinerary_set_time.
type SetTimeRequest struct {
	ItemID int64  `json:"item_id"`
	Time   string `json:"time"`
	Kind   string `json:"kind,omitempty"`
}

// ItemRequest represents the arguments for itinerary_add_item and
// itinerary_update_item.
type ItemRequest struct {
	DayID    int           `json:"day_id,omitempty"`
	ItemID   int64         `json:"item_id,omitempty"`
	Time     *string       `json:"time,omitempty"`
	Location *string       `json:"location,omitempty"`
	Desc     *string       `json:"desc,omitempty"`
	Type     *string       `json:"type,omitempty"`
	Details  *trip.Details `json:"details,omitempty"`
}

// DeleteItemRequest represents the arguments for itinerary_delete_item.
type DeleteItemRequest struct {
	ItemID int64 `json:"item_id"`
}

// ToggleRequest represents the arguments for checklist_toggle.
type ToggleRequest struct {
	GroupID string `json:"group_id"`
	ItemID  int64  `json:"item_id"`
}

// ExpenseAddRequest represents the arguments for expense_add.
type ExpenseAddRequest struct {
	Title    string  `json:"title"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
	Date     string  `json:"date,omitempty"`
	Category string  `json:"category,omitempty"`
	Note     string  `json:"note,omitempty"`
}

// VoucherAddRequest represents the arguments for voucher_add.
type VoucherAddRequest struct {
	Title string  `json:"title"`
	Kind  *string `json:"kind,omitempty"`
	Ref   *string `json:"ref,omitempty"`
	Note  *string `json:"note,omitempty"`
	URL   *string `json:"url,omitempty"`
	Date  *string `json:"date,omitempty"`
}

// WeatherRequest represents the arguments for weather_forecast.
type WeatherRequest struct {
	Refresh bool `json:"refresh,omitempty"`
}

// Output types

// ScheduleOutput is returned by itinerary_show.
type ScheduleOutput struct {
	Info     trip.Info          `json:"info"`
	Days     []trip.Day         `json:"days"`
	Progress itinerary.Progress `json:"progress"`
}

// ItemOutput is returned by the single-stop mutations. Found is false when
// no stop had the given id and nothing changed.
type ItemOutput struct {
	Found bool               `json:"found"`
	Item  *itinerary.ItemRef `json:"item,omitempty"`
}

// AddItemOutput is returned by itinerary_add_item.
type AddItemOutput struct {
	ID   int64     `json:"id"`
	Day  *trip.Day `json:"day,omitempty"`
	Note string    `json:"note,omitempty"`
}

// ChecklistOutput is returned by checklist_show and checklist_toggle.
type ChecklistOutput struct {
	Groups   []checklist.Group `json:"groups"`
	Progress int               `json:"progress"`
}

// ExpenseOutput is returned by expense_add and expense_summary.
type ExpenseOutput struct {
	ID       string            `json:"id,omitempty"`
	Summary  expense.Summary   `json:"summary"`
	Expenses []expense.Expense `json:"expenses"`
}

// VoucherOutput is returned by voucher_list and voucher_add.
type VoucherOutput struct {
	ID       string            `json:"id,omitempty"`
	Vouchers []voucher.Voucher `json:"vouchers"`
}

// WeatherOutput is returned by weather_forecast.
type WeatherOutput struct {
	weather.Result
	Daily []weather.DaySummary `json:"daily"`
}

// Handler implementations

// HandleItineraryShow handles the itinerary_show tool call.
func (h *Handlers) HandleItineraryShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ShowRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var out ScheduleOutput
	err = h.app.Do(func() error {
		it := h.app.Itinerary
		out = ScheduleOutput{Info: it.Info(), Days: it.Schedule(), Progress: it.Progress()}
		if input.DayID != nil {
			day, ok := it.Day(*input.DayID)
			if !ok {
				return errors.NewNotFound("day", fmt.Sprint(*input.DayID))
			}
			out.Days = []trip.Day{day}
		}
		return nil
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleCheckIn handles the itinerary_check_in tool call.
func (h *Handlers) HandleCheckIn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CheckInRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	kind, err := parseKind(input.Kind)
	if err != nil {
		return errorResult(err), nil
	}
	return h.itemMutation(input.ItemID, func() error {
		return h.app.Itinerary.CheckIn(ctx, input.ItemID, kind)
	})
}

// HandleSetTime handles the itinerary_set_time tool call.
func (h *Handlers) HandleSetTime(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SetTimeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	kind, err := parseKind(input.Kind)
	if err != nil {
		return errorResult(err), nil
	}
	if !trip.ValidClock(input.Time) {
		return errorResult(errors.NewInvalidRequest("time must be HH:MM (24-hour)")), nil
	}
	return h.itemMutation(input.ItemID, func() error {
		return h.app.Itinerary.UpdateCheckInTime(ctx, input.ItemID, input.Time, kind)
	})
}

// HandleClearCheckIn handles the itinerary_clear_check_in tool call.
func (h *Handlers) HandleClearCheckIn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CheckInRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	kind, err := parseKind(input.Kind)
	if err != nil {
		return errorResult(err), nil
	}
	return h.itemMutation(input.ItemID, func() error {
		return h.app.Itinerary.ClearCheckIn(ctx, input.ItemID, kind)
	})
}

// HandleAddItem handles the itinerary_add_item tool call.
func (h *Handlers) HandleAddItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ItemRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Time == nil || !trip.ValidClock(*input.Time) {
		return errorResult(errors.NewInvalidRequest("time is required as HH:MM (24-hour)")), nil
	}

	fields := itinerary.ItemFields{Time: *input.Time, Details: input.Details}
	if input.Location != nil {
		fields.Location = *input.Location
	}
	if input.Desc != nil {
		fields.Desc = *input.Desc
	}
	if input.Type != nil {
		fields.Type = trip.Category(*input.Type)
	}

	var out AddItemOutput
	err = h.app.Do(func() error {
		id, err := h.app.Itinerary.AddItem(ctx, input.DayID, fields)
		if err != nil {
			return err
		}
		out.ID = id
		if id == 0 {
			out.Note = fmt.Sprintf("no day with id %d; nothing added", input.DayID)
			return nil
		}
		day, _ := h.app.Itinerary.Day(input.DayID)
		out.Day = &day
		return nil
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleUpdateItem handles the itinerary_update_item tool call.
func (h *Handlers) HandleUpdateItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ItemRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Time != nil && !trip.ValidClock(*input.Time) {
		return errorResult(errors.NewInvalidRequest("time must be HH:MM (24-hour)")), nil
	}

	patch := itinerary.ItemPatch{
		Time:     input.Time,
		Location: input.Location,
		Desc:     input.Desc,
		Details:  input.Details,
	}
	if input.Type != nil {
		c := trip.Category(*input.Type)
		patch.Type = &c
	}
	if patch.IsEmpty() {
		return errorResult(errors.NewInvalidRequest("at least one editable field must be provided")), nil
	}

	return h.itemMutation(input.ItemID, func() error {
		return h.app.Itinerary.UpdateItem(ctx, input.ItemID, patch)
	})
}

// HandleDeleteItem handles the itinerary_delete_item tool call.
func (h *Handlers) HandleDeleteItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteItemRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var found bool
	err = h.app.Do(func() error {
		_, found = h.app.Itinerary.Item(input.ItemID)
		return h.app.Itinerary.DeleteItem(ctx, input.ItemID)
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(ItemOutput{Found: found})
}

// itemMutation runs mutate under the app lock and reports the stop afterwards.
func (h *Handlers) itemMutation(itemID int64, mutate func() error) (*mcp.CallToolResult, error) {
	var out ItemOutput
	err := h.app.Do(func() error {
		if err := mutate(); err != nil {
			return err
		}
		if ref, ok := h.app.Itinerary.Item(itemID); ok {
			out = ItemOutput{Found: true, Item: &ref}
		}
		return nil
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleChecklistShow handles the checklist_show tool call.
func (h *Handlers) HandleChecklistShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var out ChecklistOutput
	_ = h.app.Do(func() error {
		out = ChecklistOutput{Groups: h.app.Checklist.Groups(), Progress: h.app.Checklist.Progress()}
		return nil
	})
	return successResult(out)
}

// HandleChecklistToggle handles the checklist_toggle tool call.
func (h *Handlers) HandleChecklistToggle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ToggleRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.GroupID == "" {
		return errorResult(errors.NewInvalidRequest("group_id is required")), nil
	}

	var out ChecklistOutput
	err = h.app.Do(func() error {
		if err := h.app.Checklist.Toggle(ctx, input.GroupID, input.ItemID); err != nil {
			return err
		}
		out = ChecklistOutput{Groups: h.app.Checklist.Groups(), Progress: h.app.Checklist.Progress()}
		return nil
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleExpenseAdd handles the expense_add tool call.
func (h *Handlers) HandleExpenseAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExpenseAddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.Title) == "" {
		return errorResult(errors.NewInvalidRequest("title is required")), nil
	}
	if input.Date != "" {
		if _, err := trip.ParseDate(input.Date); err != nil {
			return errorResult(errors.NewInvalidRequest("date must be YYYY-MM-DD")), nil
		}
	}

	var out ExpenseOutput
	err = h.app.Do(func() error {
		id, err := h.app.Expenses.Add(ctx, expense.Fields{
			Date:     input.Date,
			Title:    input.Title,
			Amount:   input.Amount,
			Currency: expense.Currency(input.Currency),
			Category: input.Category,
			Note:     input.Note,
		})
		if err != nil {
			return err
		}
		out = h.expenseOutput()
		out.ID = id
		return nil
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleExpenseSummary handles the expense_summary tool call.
func (h *Handlers) HandleExpenseSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var out ExpenseOutput
	_ = h.app.Do(func() error {
		out = h.expenseOutput()
		return nil
	})
	return successResult(out)
}

func (h *Handlers) expenseOutput() ExpenseOutput {
	return ExpenseOutput{
		Summary:  h.app.Expenses.Summarize(),
		Expenses: h.app.Expenses.Ledger().Expenses,
	}
}

// HandleVoucherList handles the voucher_list tool call.
func (h *Handlers) HandleVoucherList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var out VoucherOutput
	_ = h.app.Do(func() error {
		out.Vouchers = h.app.Vouchers.List()
		return nil
	})
	return successResult(out)
}

// HandleVoucherAdd handles the voucher_add tool call.
func (h *Handlers) HandleVoucherAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[VoucherAddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.Title) == "" {
		return errorResult(errors.NewInvalidRequest("title is required")), nil
	}

	var out VoucherOutput
	err = h.app.Do(func() error {
		id, err := h.app.Vouchers.Add(ctx, voucher.Fields{
			Title: &input.Title,
			Kind:  input.Kind,
			Ref:   input.Ref,
			Note:  input.Note,
			URL:   input.URL,
			Date:  input.Date,
		})
		if err != nil {
			return err
		}
		out = VoucherOutput{ID: id, Vouchers: h.app.Vouchers.List()}
		return nil
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleWeatherForecast handles the weather_forecast tool call. An
// unreachable provider is not a tool error: the result is marked stale.
func (h *Handlers) HandleWeatherForecast(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WeatherRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var res weather.Result
	if input.Refresh {
		res = h.app.Weather.Refresh(ctx)
	} else {
		res = h.app.Weather.Forecast(ctx)
	}

	var dates []string
	_ = h.app.Do(func() error {
		dates = h.app.Itinerary.Dates()
		return nil
	})
	return successResult(WeatherOutput{Result: res, Daily: weather.Daily(res.Forecast, dates)})
}

func parseKind(s string) (trip.CheckInKind, error) {
	kind, ok := trip.ParseCheckInKind(s)
	if !ok {
		return "", errors.NewInvalidRequest(fmt.Sprintf("kind must be arrival or departure, got %q", s))
	}
	return kind, nil
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if tErr, ok := err.(*errors.TripError); ok {
		errorObj := map[string]any{
			"code":    tErr.Code,
			"message": tErr.Message,
			"status":  tErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if tErr.Code != errors.ErrInternal && tErr.Details != nil {
			errorObj["details"] = tErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
