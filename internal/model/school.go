package model

import "time"

// Subject is a school subject ("vak") such as wiskunde or engels.
// Name is the normalized key referenced by grades, agenda items and materials.
type Subject struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Icon        string    `json:"icon"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Grade is one test result ("cijfer") of a student.
//
// IsStudentAdded marks grades the student entered personally. Only those may
// be deleted by the student; grades entered by an admin are admin-owned.
type Grade struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"studentId"`
	Subject        string    `json:"subject"`
	TestName       string    `json:"testName"`
	Grade          float64   `json:"grade"`
	MaxGrade       float64   `json:"maxGrade"`
	Date           time.Time `json:"date"`
	Comment        *string   `json:"comment"`
	IsStudentAdded bool      `json:"isStudentAdded"`
	CreatedAt      time.Time `json:"createdAt"`
}

// AgendaItem is an upcoming test or assignment.
type AgendaItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	TestDate    time.Time `json:"testDate"`
	Subject     string    `json:"subject"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Author is the embedded {id, username} shown on materials and feedback.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Material is a piece of study material ("lesmateriaal"). Content is the text
// fed to the AI assistant; FileURL optionally points at an externally hosted file.
type Material struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	FileURL     *string   `json:"fileUrl"`
	Subject     string    `json:"subject"`
	AuthorID    string    `json:"authorId"`
	Author      *Author   `json:"author,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Weekdays are the school days a schedule entry may fall on, in week order.
var Weekdays = []string{"maandag", "dinsdag", "woensdag", "donderdag", "vrijdag"}

// ScheduleEntry is one lesson slot of the weekly timetable ("rooster").
// StartTime and EndTime are wall-clock "HH:MM" strings.
type ScheduleEntry struct {
	ID        string    `json:"id"`
	Day       string    `json:"day"`
	Period    int       `json:"period"`
	Subject   string    `json:"subject"`
	Room      *string   `json:"room"`
	Teacher   *string   `json:"teacher"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	CreatedAt time.Time `json:"createdAt"`
}

// Elective is an optional course ("keuzeles") students enroll in themselves.
//
// Enrolled is the current number of students. Students is only filled when
// the caller asked for the roster.
type Elective struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Teacher     *string   `json:"teacher"`
	MaxStudents int       `json:"maxStudents"`
	Day         *string   `json:"day"`
	Period      *int      `json:"period"`
	IsActive    bool      `json:"isActive"`
	Enrolled    int       `json:"enrolled"`
	Students    []Author  `json:"students,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// IsFull reports whether no seat is left.
func (e *Elective) IsFull() bool {
	return e.Enrolled >= e.MaxStudents
}
