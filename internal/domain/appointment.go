package domain

import (
	"fmt"
	"time"
)

// AppointmentStatus is the lifecycle of a booked visit.
type AppointmentStatus string

const (
	AppointmentConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
	AppointmentAttended  AppointmentStatus = "ATTENDED"
)

// Slot is the (store, date, time) tuple that at most one non-cancelled
// appointment may hold. Date is YYYY-MM-DD, Time is HH:MM.
type Slot struct {
	Store string `json:"store"`
	Date  string `json:"date"`
	Time  string `json:"time"`
}

var weekdays = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}

// Label renders the slot for a customer ("miércoles 01/05 a las 16:00").
// Unparseable dates are shown as stored.
func (s Slot) Label() string {
	return fmt.Sprintf("%s a las %s", s.DayLabel(), s.Time)
}

// DayLabel renders only the date part ("miércoles 01/05").
func (s Slot) DayLabel() string {
	d, err := time.Parse(time.DateOnly, s.Date)
	if err != nil {
		return s.Date
	}
	return fmt.Sprintf("%s %s", weekdays[d.Weekday()], d.Format("02/01"))
}

// Appointment is a booked store visit.
type Appointment struct {
	ID           string            `json:"id"`
	Slot         Slot              `json:"slot"`
	CustomerRef  string            `json:"customer_ref"`
	CustomerName string            `json:"customer_name,omitempty"`
	Product      string            `json:"product,omitempty"`
	Status       AppointmentStatus `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Field names an AppointmentDraft slot.
type Field string

const (
	FieldNone Field = ""
	FieldDate Field = "date"
	FieldTime Field = "time"
)

// AppointmentDraft accumulates partial booking data across turns. An empty
// string means the field is still unknown.
type AppointmentDraft struct {
	Date    string `json:"date,omitempty"`
	Time    string `json:"time,omitempty"`
	Name    string `json:"name,omitempty"`
	Product string `json:"product,omitempty"`
}

// Merge folds newer values into the draft. Populated fields of next win;
// empty fields of next never erase what is already known.
func (d AppointmentDraft) Merge(next AppointmentDraft) AppointmentDraft {
	if next.Date != "" {
		d.Date = next.Date
	}
	if next.Time != "" {
		d.Time = next.Time
	}
	if next.Name != "" {
		d.Name = next.Name
	}
	if next.Product != "" {
		d.Product = next.Product
	}
	return d
}

// Missing returns the first required field still unknown, date before time.
func (d AppointmentDraft) Missing() Field {
	switch {
	case d.Date == "":
		return FieldDate
	case d.Time == "":
		return FieldTime
	default:
		return FieldNone
	}
}

// Complete reports whether both date and time are known.
func (d AppointmentDraft) Complete() bool {
	return d.Missing() == FieldNone
}
