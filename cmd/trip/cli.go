package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/tripkit/internal/app"
	"github.com/hpungsan/tripkit/internal/errors"
	"github.com/hpungsan/tripkit/internal/expense"
	"github.com/hpungsan/tripkit/internal/itinerary"
	"github.com/hpungsan/tripkit/internal/trip"
	"github.com/hpungsan/tripkit/internal/voucher"
	"github.com/hpungsan/tripkit/internal/weather"
	"github.com/hpungsan/tripkit/internal/web"
)

// newCLIApp creates the CLI application with all commands. a may be nil
// when only help or version output is needed.
func newCLIApp(a *app.App) *cli.App {
	cliApp := &cli.App{
		Name:    "trip",
		Usage:   "Trip itinerary tracker",
		Version: Version,
		Commands: []*cli.Command{
			showCmd(a),
			checkInCmd(a),
			setTimeCmd(a),
			clearCmd(a),
			addCmd(a),
			updateCmd(a),
			deleteCmd(a),
			resetCmd(a),
			checklistCmd(a),
			expenseCmd(a),
			voucherCmd(a),
			weatherCmd(a),
			exportCmd(a),
			importCmd(a),
			serveCmd(a),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

var kindFlag = &cli.StringFlag{
	Name:    "kind",
	Aliases: []string{"k"},
	Value:   string(trip.Arrival),
	Usage:   "Check-in kind: arrival|departure",
}

// itemResult is printed after a stop mutation.
type itemResult struct {
	Found bool               `json:"found"`
	Item  *itinerary.ItemRef `json:"item,omitempty"`
}

// showCmd creates the show command.
func showCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show the schedule, or one day",
		ArgsUsage: "[day-id]",
		Action: func(c *cli.Context) error {
			if c.NArg() > 0 {
				id, err := intArg(c, "day-id")
				if err != nil {
					return outputError(err)
				}
				day, ok := a.Itinerary.Day(int(id))
				if !ok {
					return outputError(errors.NewNotFound("day", fmt.Sprint(id)))
				}
				return outputJSON(day)
			}
			return outputJSON(map[string]any{
				"info":     a.Itinerary.Info(),
				"days":     a.Itinerary.Schedule(),
				"progress": a.Itinerary.Progress(),
			})
		},
	}
}

// checkInCmd creates the checkin command.
func checkInCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "checkin",
		Usage:     "Record the current time as a stop's arrival or departure",
		ArgsUsage: "<item-id>",
		Flags:     []cli.Flag{kindFlag},
		Action: func(c *cli.Context) error {
			id, kind, err := itemAndKind(c)
			if err != nil {
				return outputError(err)
			}
			if err := a.Itinerary.CheckIn(c.Context, id, kind); err != nil {
				return outputError(err)
			}
			return outputItem(a, id)
		},
	}
}

// setTimeCmd creates the set-time command.
func setTimeCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "set-time",
		Usage:     "Set a check-in time manually",
		ArgsUsage: "<item-id> <HH:MM>",
		Flags:     []cli.Flag{kindFlag},
		Action: func(c *cli.Context) error {
			id, kind, err := itemAndKind(c)
			if err != nil {
				return outputError(err)
			}
			value := c.Args().Get(1)
			if !trip.ValidClock(value) {
				return outputError(errors.NewInvalidRequest("time must be HH:MM (24-hour)"))
			}
			if err := a.Itinerary.UpdateCheckInTime(c.Context, id, value, kind); err != nil {
				return outputError(err)
			}
			return outputItem(a, id)
		},
	}
}

// clearCmd creates the clear command.
func clearCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "clear",
		Usage:     "Remove a recorded check-in time",
		ArgsUsage: "<item-id>",
		Flags:     []cli.Flag{kindFlag},
		Action: func(c *cli.Context) error {
			id, kind, err := itemAndKind(c)
			if err != nil {
				return outputError(err)
			}
			if err := a.Itinerary.ClearCheckIn(c.Context, id, kind); err != nil {
				return outputError(err)
			}
			return outputItem(a, id)
		},
	}
}

var itemFlags = []cli.Flag{
	&cli.StringFlag{Name: "time", Aliases: []string{"t"}, Usage: "Planned time, HH:MM"},
	&cli.StringFlag{Name: "location", Aliases: []string{"l"}, Usage: "Place name"},
	&cli.StringFlag{Name: "desc", Aliases: []string{"d"}, Usage: "Description"},
	&cli.StringFlag{Name: "type", Usage: "Category (transport, food, attraction, ...)"},
	&cli.StringFlag{Name: "note", Usage: "Details note"},
}

// addCmd creates the add command.
func addCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a stop to a day",
		ArgsUsage: "<day-id>",
		Flags:     itemFlags,
		Action: func(c *cli.Context) error {
			dayID, err := intArg(c, "day-id")
			if err != nil {
				return outputError(err)
			}
			if !trip.ValidClock(c.String("time")) {
				return outputError(errors.NewInvalidRequest("--time is required as HH:MM (24-hour)"))
			}

			fields := itinerary.ItemFields{
				Time:     c.String("time"),
				Location: c.String("location"),
				Desc:     c.String("desc"),
				Type:     trip.Category(c.String("type")),
			}
			if note := c.String("note"); note != "" {
				fields.Details = &trip.Details{Note: note}
			}

			id, err := a.Itinerary.AddItem(c.Context, int(dayID), fields)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"id": id})
		},
	}
}

// updateCmd creates the update command.
func updateCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Change fields of a stop; omitted flags are kept",
		ArgsUsage: "<item-id>",
		Flags:     itemFlags,
		Action: func(c *cli.Context) error {
			id, err := intArg(c, "item-id")
			if err != nil {
				return outputError(err)
			}

			var patch itinerary.ItemPatch
			if c.IsSet("time") {
				v := c.String("time")
				if !trip.ValidClock(v) {
					return outputError(errors.NewInvalidRequest("time must be HH:MM (24-hour)"))
				}
				patch.Time = &v
			}
			if c.IsSet("location") {
				v := c.String("location")
				patch.Location = &v
			}
			if c.IsSet("desc") {
				v := c.String("desc")
				patch.Desc = &v
			}
			if c.IsSet("type") {
				v := trip.Category(c.String("type"))
				patch.Type = &v
			}
			if c.IsSet("note") {
				patch.Details = &trip.Details{Note: c.String("note")}
			}
			if patch.IsEmpty() {
				return outputError(errors.NewInvalidRequest("at least one field flag must be provided"))
			}

			if err := a.Itinerary.UpdateItem(c.Context, id, patch); err != nil {
				return outputError(err)
			}
			return outputItem(a, id)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Remove a stop",
		ArgsUsage: "<item-id>",
		Action: func(c *cli.Context) error {
			id, err := intArg(c, "item-id")
			if err != nil {
				return outputError(err)
			}
			_, found := a.Itinerary.Item(id)
			if err := a.Itinerary.DeleteItem(c.Context, id); err != nil {
				return outputError(err)
			}
			return outputJSON(itemResult{Found: found})
		},
	}
}

// resetCmd creates the reset command.
func resetCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Discard all check-ins and edits and start over from the template",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm the reset"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				return outputError(errors.NewInvalidRequest("reset discards all progress; pass --yes to confirm"))
			}
			if err := a.Itinerary.Reset(c.Context); err != nil {
				return outputError(err)
			}
			return outputJSON(a.Itinerary.Progress())
		},
	}
}

// checklistCmd creates the checklist command group.
func checklistCmd(a *app.App) *cli.Command {
	show := func() error {
		return outputJSON(map[string]any{
			"groups":   a.Checklist.Groups(),
			"progress": a.Checklist.Progress(),
		})
	}

	return &cli.Command{
		Name:  "checklist",
		Usage: "Packing list and pre-departure tasks",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "Show all groups",
				Action: func(c *cli.Context) error { return show() },
			},
			{
				Name:      "toggle",
				Usage:     "Flip an entry's completed flag",
				ArgsUsage: "<group-id> <item-id>",
				Action: func(c *cli.Context) error {
					id, err := parseID(c.Args().Get(1), "item-id")
					if err != nil {
						return outputError(err)
					}
					if err := a.Checklist.Toggle(c.Context, c.Args().First(), id); err != nil {
						return outputError(err)
					}
					return show()
				},
			},
			{
				Name:      "add",
				Usage:     "Append an entry to a group",
				ArgsUsage: "<group-id> <text>",
				Action: func(c *cli.Context) error {
					text := strings.TrimSpace(strings.Join(c.Args().Tail(), " "))
					if text == "" {
						return outputError(errors.NewInvalidRequest("text is required"))
					}
					id, err := a.Checklist.Add(c.Context, c.Args().First(), text)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"id": id})
				},
			},
			{
				Name:      "remove",
				Usage:     "Remove an entry",
				ArgsUsage: "<group-id> <item-id>",
				Action: func(c *cli.Context) error {
					id, err := parseID(c.Args().Get(1), "item-id")
					if err != nil {
						return outputError(err)
					}
					if err := a.Checklist.Remove(c.Context, c.Args().First(), id); err != nil {
						return outputError(err)
					}
					return show()
				},
			},
		},
	}
}

// expenseCmd creates the expense command group.
func expenseCmd(a *app.App) *cli.Command {
	show := func() error {
		return outputJSON(map[string]any{
			"summary":  a.Expenses.Summarize(),
			"expenses": a.Expenses.Ledger().Expenses,
		})
	}

	return &cli.Command{
		Name:  "expense",
		Usage: "Trip expenses and budget",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "Show the ledger and totals",
				Action: func(c *cli.Context) error { return show() },
			},
			{
				Name:      "add",
				Usage:     "Record an expense",
				ArgsUsage: "<amount> <title>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "currency", Aliases: []string{"c"}, Value: string(expense.JPY), Usage: "JPY|TWD"},
					&cli.StringFlag{Name: "date", Usage: "YYYY-MM-DD (default today)"},
					&cli.StringFlag{Name: "category", Usage: "Category"},
					&cli.StringFlag{Name: "note", Usage: "Note"},
				},
				Action: func(c *cli.Context) error {
					amount, err := strconv.ParseFloat(c.Args().First(), 64)
					if err != nil {
						return outputError(errors.NewInvalidRequest("amount must be a number"))
					}
					title := strings.TrimSpace(strings.Join(c.Args().Tail(), " "))
					if title == "" {
						return outputError(errors.NewInvalidRequest("title is required"))
					}
					if date := c.String("date"); date != "" {
						if _, err := trip.ParseDate(date); err != nil {
							return outputError(errors.NewInvalidRequest("date must be YYYY-MM-DD"))
						}
					}

					id, err := a.Expenses.Add(c.Context, expense.Fields{
						Date:     c.String("date"),
						Title:    title,
						Amount:   amount,
						Currency: expense.Currency(c.String("currency")),
						Category: c.String("category"),
						Note:     c.String("note"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"id": id, "summary": a.Expenses.Summarize()})
				},
			},
			{
				Name:      "remove",
				Usage:     "Remove an expense",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					if err := a.Expenses.Remove(c.Context, c.Args().First()); err != nil {
						return outputError(err)
					}
					return show()
				},
			},
			{
				Name:      "rate",
				Usage:     "Set the TWD-per-JPY exchange rate",
				ArgsUsage: "<rate>",
				Action: func(c *cli.Context) error {
					rate, err := strconv.ParseFloat(c.Args().First(), 64)
					if err != nil {
						return outputError(errors.NewInvalidRequest("rate must be a number"))
					}
					if err := a.Expenses.UpdateRate(c.Context, rate); err != nil {
						return outputError(err)
					}
					return outputJSON(a.Expenses.Summarize())
				},
			},
			{
				Name:      "budget",
				Usage:     "Set the trip budget in JPY",
				ArgsUsage: "<amount>",
				Action: func(c *cli.Context) error {
					amount, err := strconv.ParseFloat(c.Args().First(), 64)
					if err != nil {
						return outputError(errors.NewInvalidRequest("budget must be a number"))
					}
					if err := a.Expenses.SetBudget(c.Context, amount); err != nil {
						return outputError(err)
					}
					return outputJSON(a.Expenses.Summarize())
				},
			},
		},
	}
}

var voucherFlags = []cli.Flag{
	&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Title"},
	&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "flight, hotel, ticket, ..."},
	&cli.StringFlag{Name: "ref", Usage: "Booking reference"},
	&cli.StringFlag{Name: "note", Usage: "Note"},
	&cli.StringFlag{Name: "url", Usage: "Link to the document"},
	&cli.StringFlag{Name: "date", Usage: "YYYY-MM-DD"},
}

// voucherFields collects the voucher flags that were set.
func voucherFields(c *cli.Context) voucher.Fields {
	get := func(name string) *string {
		if !c.IsSet(name) {
			return nil
		}
		v := c.String(name)
		return &v
	}
	return voucher.Fields{
		Title: get("title"),
		Kind:  get("kind"),
		Ref:   get("ref"),
		Note:  get("note"),
		URL:   get("url"),
		Date:  get("date"),
	}
}

// voucherCmd creates the voucher command group.
func voucherCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "voucher",
		Usage: "Booking references and tickets",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List vouchers, newest first",
				Action: func(c *cli.Context) error { return outputJSON(a.Vouchers.List()) },
			},
			{
				Name:  "add",
				Usage: "Store a voucher",
				Flags: voucherFlags,
				Action: func(c *cli.Context) error {
					f := voucherFields(c)
					if f.Title == nil || strings.TrimSpace(*f.Title) == "" {
						return outputError(errors.NewInvalidRequest("--title is required"))
					}
					id, err := a.Vouchers.Add(c.Context, f)
					if err != nil {
						return outputError(err)
					}
					v, _ := a.Vouchers.Get(id)
					return outputJSON(v)
				},
			},
			{
				Name:      "update",
				Usage:     "Change fields of a voucher",
				ArgsUsage: "<id>",
				Flags:     voucherFlags,
				Action: func(c *cli.Context) error {
					id := c.Args().First()
					if err := a.Vouchers.Update(c.Context, id, voucherFields(c)); err != nil {
						return outputError(err)
					}
					v, ok := a.Vouchers.Get(id)
					if !ok {
						return outputError(errors.NewNotFound("voucher", id))
					}
					return outputJSON(v)
				},
			},
			{
				Name:      "delete",
				Usage:     "Remove a voucher",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					if err := a.Vouchers.Delete(c.Context, c.Args().First()); err != nil {
						return outputError(err)
					}
					return outputJSON(a.Vouchers.List())
				},
			},
		},
	}
}

// weatherCmd creates the weather command.
func weatherCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "weather",
		Usage: "Show the forecast for the trip location",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "refresh", Aliases: []string{"r"}, Usage: "Ignore the cache"},
		},
		Action: func(c *cli.Context) error {
			var res weather.Result
			if c.Bool("refresh") {
				res = a.Weather.Refresh(c.Context)
			} else {
				res = a.Weather.Forecast(c.Context)
			}
			return outputJSON(map[string]any{
				"location":   res.Forecast.Location,
				"fetched_at": res.FetchedAt,
				"cached":     res.Cached,
				"stale":      res.Stale,
				"error":      res.Error,
				"daily":      weather.Daily(res.Forecast, a.Itinerary.Dates()),
			})
		},
	}
}

// exportCmd creates the export command.
func exportCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Write the schedule, checklist, ledger and vouchers to a JSONL file",
		ArgsUsage: "[path]",
		Action: func(c *cli.Context) error {
			res, err := a.Export(c.Context, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(res)
		},
	}
}

// importCmd creates the import command.
func importCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Restore trip data from an export file (replaces current data)",
		ArgsUsage: "<path>",
		Action: func(c *cli.Context) error {
			res, err := a.Import(c.Context, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(res)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the JSON HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Address to bind (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port (default from config)"},
		},
		Action: func(c *cli.Context) error {
			bind := a.Config.HTTPBind
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			port := a.Config.HTTPPort
			if c.IsSet("port") {
				port = c.Int("port")
			}
			if port < 1 || port > 65535 {
				return outputError(errors.NewInvalidRequest("port must be between 1 and 65535"))
			}
			return web.Run(web.NewServer(a, bind, port), a.Log)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputItem prints the stop with id, or found=false.
func outputItem(a *app.App, id int64) error {
	ref, ok := a.Itinerary.Item(id)
	if !ok {
		return outputJSON(itemResult{})
	}
	return outputJSON(itemResult{Found: true, Item: &ref})
}

// outputError formats error for CLI.
func outputError(err error) error {
	if tErr, ok := err.(*errors.TripError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", tErr.Code, tErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

func itemAndKind(c *cli.Context) (int64, trip.CheckInKind, error) {
	id, err := intArg(c, "item-id")
	if err != nil {
		return 0, "", err
	}
	kind, ok := trip.ParseCheckInKind(c.String("kind"))
	if !ok {
		return 0, "", errors.NewInvalidRequest(fmt.Sprintf("kind must be arrival or departure, got %q", c.String("kind")))
	}
	return id, kind, nil
}

// intArg parses the first positional argument as an id.
func intArg(c *cli.Context, name string) (int64, error) {
	return parseID(c.Args().First(), name)
}

func parseID(s, name string) (int64, error) {
	if s == "" {
		return 0, errors.NewInvalidRequest(name + " is required")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("%s must be an integer, got %q", name, s))
	}
	return id, nil
}
