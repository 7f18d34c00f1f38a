package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/app"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/memory"
)

// recordField is one string flag of a remember subcommand.
type recordField struct {
	name     string
	usage    string
	required bool
}

// recordKind describes a remember subcommand and how its flags become a
// memory record.
type recordKind struct {
	name   string
	usage  string
	fields []recordField
	build  func(v map[string]string) memory.Record
}

var recordKinds = []recordKind{
	{
		name:  "email",
		usage: "Remember an email",
		fields: []recordField{
			{"subject", "subject line", true},
			{"from", "sender", true},
			{"date", "date sent", false},
			{"body", "message body", true},
		},
		build: func(v map[string]string) memory.Record {
			return memory.EmailRecord(memory.Email{Subject: v["subject"], From: v["from"], Date: v["date"], Body: v["body"]})
		},
	},
	{
		name:  "contact",
		usage: "Remember a contact",
		fields: []recordField{
			{"id", "contact id", false},
			{"name", "full name", true},
			{"email", "email address", false},
			{"org", "organisation", false},
			{"role", "role or title", false},
			{"notes", "free-form notes", false},
		},
		build: func(v map[string]string) memory.Record {
			c := memory.Contact{Name: v["name"], Email: v["email"], Org: v["org"], Role: v["role"], Notes: v["notes"]}
			if v["id"] != "" {
				c.ID = v["id"]
			}
			return memory.ContactRecord(c)
		},
	},
	{
		name:  "meeting",
		usage: "Remember meeting notes",
		fields: []recordField{
			{"title", "meeting title", true},
			{"date", "meeting date", false},
			{"participants", "comma-separated participants", false},
			{"notes", "meeting notes", true},
		},
		build: func(v map[string]string) memory.Record {
			return memory.MeetingRecord(memory.Meeting{Title: v["title"], Date: v["date"], Participants: v["participants"], Notes: v["notes"]})
		},
	},
	{
		name:  "task",
		usage: "Remember a task",
		fields: []recordField{
			{"title", "task title", true},
			{"description", "details", false},
			{"status", "status", false},
			{"priority", "priority", false},
			{"due", "due date", false},
		},
		build: func(v map[string]string) memory.Record {
			return memory.TaskRecord(memory.Task{Title: v["title"], Description: v["description"], Status: v["status"], Priority: v["priority"], DueDate: v["due"]})
		},
	},
	{
		name:  "decision",
		usage: "Remember a decision",
		fields: []recordField{
			{"title", "decision title", true},
			{"date", "decision date", false},
			{"text", "what was decided and why", true},
		},
		build: func(v map[string]string) memory.Record {
			return memory.DecisionRecord(v["title"], v["date"], v["text"])
		},
	},
	{
		name:  "travel",
		usage: "Remember a trip",
		fields: []recordField{
			{"title", "trip title", true},
			{"start", "start date", false},
			{"end", "end date", false},
			{"details", "itinerary and bookings", true},
		},
		build: func(v map[string]string) memory.Record {
			return memory.TravelRecord(v["title"], v["start"], v["end"], v["details"])
		},
	},
	{
		name:  "note",
		usage: "Remember general knowledge",
		fields: []recordField{
			{"title", "note title", true},
			{"text", "note text", true},
		},
		build: func(v map[string]string) memory.Record {
			return memory.NoteRecord(v["title"], v["text"])
		},
	},
}

func rememberCommand(g *globals) *cli.Command {
	cmds := make([]*cli.Command, 0, len(recordKinds))
	for _, k := range recordKinds {
		cmds = append(cmds, k.command(g))
	}
	return &cli.Command{
		Name:     "remember",
		Usage:    "Store a structured record (email, contact, meeting, ...) in memory",
		Commands: cmds,
	}
}

func (k recordKind) command(g *globals) *cli.Command {
	values := make(map[string]*string, len(k.fields))
	flags := make([]cli.Flag, 0, len(k.fields))
	for _, f := range k.fields {
		dst := new(string)
		values[f.name] = dst
		flags = append(flags, &cli.StringFlag{
			Name:        f.name,
			Usage:       f.usage,
			Required:    f.required,
			Destination: dst,
		})
	}
	return &cli.Command{
		Name:  k.name,
		Usage: k.usage,
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			v := make(map[string]string, len(values))
			for name, p := range values {
				v[name] = *p
			}
			return withApp(g, c, func(a *app.App) error {
				return report(c, a.Assistant().Index(ctx, cliActor, k.build(v)))
			})
		},
	}
}
