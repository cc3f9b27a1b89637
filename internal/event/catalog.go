package event

import (
	"strings"
	"time"

	"github.com/alumnet/alumnet/internal/identity"
	"github.com/alumnet/alumnet/internal/presence"
)

// AlumniVerificationSubmitted tells every connected admin that an alumni
// profile awaits verification. Wire type new_alumni_verification, target role:ADMIN.
type AlumniVerificationSubmitted struct {
	AlumniID    string    `json:"alumniId"`
	AlumniName  string    `json:"alumniName"`
	AlumniEmail string    `json:"alumniEmail"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewAlumniVerificationSubmitted builds a new_alumni_verification event stamped now.
func NewAlumniVerificationSubmitted(alumniID, name, email string) AlumniVerificationSubmitted {
	return AlumniVerificationSubmitted{
		AlumniID:    strings.TrimSpace(alumniID),
		AlumniName:  strings.TrimSpace(name),
		AlumniEmail: strings.TrimSpace(email),
		Timestamp:   now(),
	}
}

func (AlumniVerificationSubmitted) Type() Type { return TypeNewAlumniVerification }

func (e AlumniVerificationSubmitted) Validate() error {
	if err := requireUser(e.Type(), "alumniId", e.AlumniID); err != nil {
		return err
	}
	return requireTime(e.Type(), e.Timestamp)
}

func (AlumniVerificationSubmitted) Targets() ([]presence.Channel, error) {
	return roleTargets([]identity.Role{identity.RoleAdmin})
}

func (AlumniVerificationSubmitted) sealed() {}

// VerificationDecided tells an alumni the outcome of their verification.
// Wire type verification_decision, target user:<alumniId>.
type VerificationDecided struct {
	AlumniID  string    `json:"-"`
	Approved  bool      `json:"approved"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewVerificationDecided builds a verification_decision event with the
// standard message for the outcome.
func NewVerificationDecided(alumniID string, approved bool) VerificationDecided {
	msg := "Your alumni profile was not approved."
	if approved {
		msg = "Your alumni profile has been verified."
	}
	return VerificationDecided{
		AlumniID:  strings.TrimSpace(alumniID),
		Approved:  approved,
		Message:   msg,
		Timestamp: now(),
	}
}

func (VerificationDecided) Type() Type { return TypeVerificationDecision }

func (e VerificationDecided) Validate() error {
	if err := requireUser(e.Type(), "alumniId", e.AlumniID); err != nil {
		return err
	}
	if err := requireText(e.Type(), "message", e.Message); err != nil {
		return err
	}
	return requireTime(e.Type(), e.Timestamp)
}

func (e VerificationDecided) Targets() ([]presence.Channel, error) {
	return userTarget(e.AlumniID)
}

func (VerificationDecided) sealed() {}

// MentorshipRequested tells an alumni that a student asked for mentorship.
// Wire type new_mentorship_request, target user:<alumniId>.
type MentorshipRequested struct {
	RequestID   string    `json:"requestId"`
	AlumniID    string    `json:"-"`
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewMentorshipRequested builds a new_mentorship_request event stamped now.
func NewMentorshipRequested(requestID, alumniID, studentID, studentName, message string) MentorshipRequested {
	return MentorshipRequested{
		RequestID:   requestID,
		AlumniID:    strings.TrimSpace(alumniID),
		StudentID:   strings.TrimSpace(studentID),
		StudentName: strings.TrimSpace(studentName),
		Message:     message,
		Timestamp:   now(),
	}
}

func (MentorshipRequested) Type() Type { return TypeNewMentorshipRequest }

func (e MentorshipRequested) Validate() error {
	if err := requireUser(e.Type(), "studentId", e.StudentID); err != nil {
		return err
	}
	if err := requireUser(e.Type(), "alumniId", e.AlumniID); err != nil {
		return err
	}
	return requireTime(e.Type(), e.Timestamp)
}

func (e MentorshipRequested) Targets() ([]presence.Channel, error) {
	return userTarget(e.AlumniID)
}

func (MentorshipRequested) sealed() {}

// MentorshipDecided tells a student how the alumni answered.
// Wire type mentorship_decision, target user:<studentId>.
type MentorshipDecided struct {
	RequestID string    `json:"requestId"`
	StudentID string    `json:"-"`
	AlumniID  string    `json:"alumniId"`
	Accepted  bool      `json:"accepted"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMentorshipDecided builds a mentorship_decision event stamped now.
func NewMentorshipDecided(requestID, studentID, alumniID string, accepted bool, message string) MentorshipDecided {
	return MentorshipDecided{
		RequestID: requestID,
		StudentID: strings.TrimSpace(studentID),
		AlumniID:  strings.TrimSpace(alumniID),
		Accepted:  accepted,
		Message:   message,
		Timestamp: now(),
	}
}

func (MentorshipDecided) Type() Type { return TypeMentorshipDecision }

func (e MentorshipDecided) Validate() error {
	if err := requireUser(e.Type(), "studentId", e.StudentID); err != nil {
		return err
	}
	if err := requireUser(e.Type(), "alumniId", e.AlumniID); err != nil {
		return err
	}
	return requireTime(e.Type(), e.Timestamp)
}

func (e MentorshipDecided) Targets() ([]presence.Channel, error) {
	return userTarget(e.StudentID)
}

func (MentorshipDecided) sealed() {}

// JobPosted announces a new job listing to the audience roles.
// Wire type new_job_posted.
type JobPosted struct {
	JobID     string          `json:"jobId"`
	Title     string          `json:"title"`
	Company   string          `json:"company"`
	PostedBy  string          `json:"postedBy"`
	Audience  []identity.Role `json:"-"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewJobPosted builds a new_job_posted event stamped now.
func NewJobPosted(jobID, title, company, postedBy string, audience ...identity.Role) JobPosted {
	return JobPosted{
		JobID:     jobID,
		Title:     strings.TrimSpace(title),
		Company:   strings.TrimSpace(company),
		PostedBy:  strings.TrimSpace(postedBy),
		Audience:  audience,
		Timestamp: now(),
	}
}

func (JobPosted) Type() Type { return TypeNewJobPosted }

func (e JobPosted) Validate() error {
	if err := requireText(e.Type(), "jobId", e.JobID); err != nil {
		return err
	}
	if err := requireText(e.Type(), "title", e.Title); err != nil {
		return err
	}
	if err := requireAudience(e.Type(), e.Audience); err != nil {
		return err
	}
	return requireTime(e.Type(), e.Timestamp)
}

func (e JobPosted) Targets() ([]presence.Channel, error) {
	return roleTargets(e.Audience)
}

func (JobPosted) sealed() {}

// EventCreated announces a new institution event to the audience roles.
// Wire type new_event_created.
type EventCreated struct {
	EventID   string          `json:"eventId"`
	Title     string          `json:"title"`
	Location  string          `json:"location,omitempty"`
	StartsAt  time.Time       `json:"startsAt"`
	CreatedBy string          `json:"createdBy"`
	Audience  []identity.Role `json:"-"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEventCreated builds a new_event_created event stamped now.
func NewEventCreated(eventID, title, location string, startsAt time.Time, createdBy string, audience ...identity.Role) EventCreated {
	return EventCreated{
		EventID:   eventID,
		Title:     strings.TrimSpace(title),
		Location:  strings.TrimSpace(location),
		StartsAt:  startsAt.UTC(),
		CreatedBy: strings.TrimSpace(createdBy),
		Audience:  audience,
		Timestamp: now(),
	}
}

func (EventCreated) Type() Type { return TypeNewEventCreated }

func (e EventCreated) Validate() error {
	if err := requireText(e.Type(), "eventId", e.EventID); err != nil {
		return err
	}
	if err := requireText(e.Type(), "title", e.Title); err != nil {
		return err
	}
	if e.StartsAt.IsZero() {
		return invalid(e.Type(), "startsAt required")
	}
	if err := requireAudience(e.Type(), e.Audience); err != nil {
		return err
	}
	return requireTime(e.Type(), e.Timestamp)
}

func (e EventCreated) Targets() ([]presence.Channel, error) {
	return roleTargets(e.Audience)
}

func (EventCreated) sealed() {}
