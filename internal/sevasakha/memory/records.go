package memory

import (
	"fmt"
	"strings"
)

// Source types produced by the record builders. The set is open; any
// non-empty string is a valid source type.
const (
	SourceEmail         = "email"
	SourceDocument      = "document"
	SourceMeeting       = "meeting"
	SourceContact       = "contact"
	SourceTask          = "task"
	SourceDecision      = "decision"
	SourceTravel        = "travel"
	SourceMessage       = "message"
	SourceTranslation   = "translation"
	SourceTranscription = "transcription"
	SourceNote          = "general_knowledge"
)

// Email is a fetched or sent message.
type Email struct {
	Subject string
	From    string
	Date    string
	Body    string
}

// EmailRecord titles an email "{subject} — {from}" and keeps the headers in
// the indexed text.
func EmailRecord(e Email) Record {
	return Record{
		SourceType: SourceEmail,
		Title:      fmt.Sprintf("%s — %s", e.Subject, e.From),
		Body:       fmt.Sprintf("Subject: %s\nFrom: %s\nDate: %s\n\n%s", e.Subject, e.From, e.Date, e.Body),
		Extra:      map[string]any{"email_from": e.From, "email_date": e.Date},
	}
}

// Contact is an address-book entry.
type Contact struct {
	ID    any
	Name  string
	Email string
	Org   string
	Role  string
	Notes string
}

// ContactRecord indexes a contact under its name.
func ContactRecord(c Contact) Record {
	return Record{
		SourceType: SourceContact,
		Title:      c.Name,
		Body:       fmt.Sprintf("Name: %s\nEmail: %s\nOrg: %s\nRole: %s\nNotes:\n%s", c.Name, c.Email, c.Org, c.Role, c.Notes),
		Extra:      map[string]any{"contact_id": c.ID},
	}
}

// Meeting is a scheduled or completed meeting with notes.
type Meeting struct {
	Title        string
	Date         string
	Participants string
	Notes        string
}

// MeetingRecord indexes meeting notes with participants and date metadata.
func MeetingRecord(m Meeting) Record {
	return Record{
		SourceType: SourceMeeting,
		Title:      m.Title,
		Body:       fmt.Sprintf("Title: %s\nDate: %s\nParticipants: %s\n\nNotes:\n%s", m.Title, m.Date, m.Participants, m.Notes),
		Extra:      map[string]any{"participants": m.Participants, "meeting_date": m.Date},
	}
}

// DecisionRecord indexes a logged decision.
func DecisionRecord(title, date, text string) Record {
	return Record{
		SourceType: SourceDecision,
		Title:      title,
		Body:       fmt.Sprintf("Decision: %s\nDate: %s\n\n%s", title, date, text),
		Extra:      map[string]any{"decision_date": date},
	}
}

// TravelRecord indexes a trip itinerary.
func TravelRecord(title, start, end, details string) Record {
	return Record{
		SourceType: SourceTravel,
		Title:      title,
		Body:       fmt.Sprintf("Trip: %s\nStart: %s\nEnd: %s\n\nDetails:\n%s", title, start, end, details),
		Extra:      map[string]any{"travel_start": start, "travel_end": end},
	}
}

// Task is a to-do item.
type Task struct {
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     string
}

// TaskRecord indexes a task with its status and due date.
func TaskRecord(t Task) Record {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\nStatus: %s\nPriority: %s\nDue: %s", t.Title, t.Status, t.Priority, t.DueDate)
	if t.Description != "" {
		fmt.Fprintf(&b, "\n\n%s", t.Description)
	}
	return Record{
		SourceType: SourceTask,
		Title:      t.Title,
		Body:       b.String(),
		Extra:      map[string]any{"status": t.Status, "priority": t.Priority, "due_date": t.DueDate},
	}
}

// DocumentRecord indexes extracted document text under its file name.
func DocumentRecord(filename, text string) Record {
	return Record{SourceType: SourceDocument, Title: filename, Body: text}
}

// TranslationRecord keeps a translation searchable alongside its source.
func TranslationRecord(lang, original, translated string) Record {
	return Record{
		SourceType: SourceTranslation,
		Title:      "Translation to " + lang,
		Body:       fmt.Sprintf("Original:\n%s\n\nTranslation (%s):\n%s", original, lang, translated),
		Extra:      map[string]any{"target_language": lang},
	}
}

// MessageRecord indexes a chat message from the Matrix gateway.
func MessageRecord(sender, room, body string) Record {
	return Record{
		SourceType: SourceMessage,
		Title:      fmt.Sprintf("%s in %s", sender, room),
		Body:       body,
		Extra:      map[string]any{"sender": sender, "room": room},
	}
}

// NoteRecord indexes free-form knowledge the user asked to remember.
func NoteRecord(title, text string) Record {
	return Record{SourceType: SourceNote, Title: title, Body: text}
}
