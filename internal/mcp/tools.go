package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var kindOption = mcp.WithString("kind",
	mcp.Description("Which check-in to touch: arrival (default) or departure"),
	mcp.Enum("arrival", "departure"),
)

var itineraryShowToolDef = mcp.NewTool("itinerary_show",
	mcp.WithDescription("Show the trip schedule with projected dates, check-ins and progress. Pass day_id for a single day."),
	mcp.WithNumber("day_id", mcp.Description("Only return this day")),
)

var checkInToolDef = mcp.NewTool("itinerary_check_in",
	mcp.WithDescription("Record the current local time as the arrival or departure time of a stop."),
	mcp.WithNumber("item_id", mcp.Required(), mcp.Description("Stop id")),
	kindOption,
)

var setTimeToolDef = mcp.NewTool("itinerary_set_time",
	mcp.WithDescription("Set a check-in time manually."),
	mcp.WithNumber("item_id", mcp.Required(), mcp.Description("Stop id")),
	mcp.WithString("time", mcp.Required(), mcp.Description("24-hour HH:MM")),
	kindOption,
)

var clearCheckInToolDef = mcp.NewTool("itinerary_clear_check_in",
	mcp.WithDescription("Remove a recorded check-in time."),
	mcp.WithNumber("item_id", mcp.Required(), mcp.Description("Stop id")),
	kindOption,
)

var itemFieldOptions = []mcp.ToolOption{
	mcp.WithString("time", mcp.Description("Planned time, 24-hour HH:MM")),
	mcp.WithString("location", mcp.Description("Place name")),
	mcp.WithString("desc", mcp.Description("What happens there")),
	mcp.WithString("type", mcp.Description("Category: transport, food, attraction, shop, lodging, ...")),
	mcp.WithObject("details", mcp.Description("Optional annotations: note, address, line, platform, price, reservation, type, mustSee, mustTry, mustEat")),
}

var addItemToolDef = mcp.NewTool("itinerary_add_item", append([]mcp.ToolOption{
	mcp.WithDescription("Add a stop to a day. The day stays ordered by time. Returns the new stop id (0 if the day does not exist)."),
	mcp.WithNumber("day_id", mcp.Required(), mcp.Description("Day id")),
}, itemFieldOptions...)...)

var updateItemToolDef = mcp.NewTool("itinerary_update_item", append([]mcp.ToolOption{
	mcp.WithDescription("Change fields of a stop. Omitted fields are kept; check-ins are not editable here."),
	mcp.WithNumber("item_id", mcp.Required(), mcp.Description("Stop id")),
}, itemFieldOptions...)...)

var deleteItemToolDef = mcp.NewTool("itinerary_delete_item",
	mcp.WithDescription("Remove a stop from the schedule."),
	mcp.WithNumber("item_id", mcp.Required(), mcp.Description("Stop id")),
)

var checklistShowToolDef = mcp.NewTool("checklist_show",
	mcp.WithDescription("Show the packing list and pre-departure tasks with overall progress."),
)

var checklistToggleToolDef = mcp.NewTool("checklist_toggle",
	mcp.WithDescription("Flip the completed flag of a checklist entry."),
	mcp.WithString("group_id", mcp.Required(), mcp.Description("Group id, e.g. luggage or tasks")),
	mcp.WithNumber("item_id", mcp.Required(), mcp.Description("Entry id")),
)

var expenseAddToolDef = mcp.NewTool("expense_add",
	mcp.WithDescription("Record an expense."),
	mcp.WithString("title", mcp.Required(), mcp.Description("What was paid for")),
	mcp.WithNumber("amount", mcp.Required(), mcp.Description("Amount in the given currency")),
	mcp.WithString("currency", mcp.Description("JPY (default) or TWD"), mcp.Enum("JPY", "TWD")),
	mcp.WithString("date", mcp.Description("YYYY-MM-DD, default today")),
	mcp.WithString("category", mcp.Description("Free-form category")),
	mcp.WithString("note", mcp.Description("Free-form note")),
)

var expenseSummaryToolDef = mcp.NewTool("expense_summary",
	mcp.WithDescription("Show budget, totals in JPY and TWD, remaining budget and recorded expenses."),
)

var voucherListToolDef = mcp.NewTool("voucher_list",
	mcp.WithDescription("List stored vouchers, newest first."),
)

var voucherAddToolDef = mcp.NewTool("voucher_add",
	mcp.WithDescription("Store a voucher or booking reference."),
	mcp.WithString("title", mcp.Required(), mcp.Description("Title")),
	mcp.WithString("kind", mcp.Description("flight, hotel, ticket, ...")),
	mcp.WithString("ref", mcp.Description("Booking reference")),
	mcp.WithString("note", mcp.Description("Free-form note")),
	mcp.WithString("url", mcp.Description("Link to the document")),
	mcp.WithString("date", mcp.Description("YYYY-MM-DD, default today")),
)

var weatherForecastToolDef = mcp.NewTool("weather_forecast",
	mcp.WithDescription("Forecast for the trip location, cached for a few hours. stale=true means the provider was unreachable and the last known forecast is shown."),
	mcp.WithBoolean("refresh", mcp.Description("Ignore the cache and fetch now")),
)
