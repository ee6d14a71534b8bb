package core

import "github.com/google/uuid"

// TaskID is the opaque identity of a task or group. It is stable for the
// lifetime of the instance and is what group back-references store.
type TaskID uuid.UUID

// GenerateTaskID returns a new random TaskID.
func GenerateTaskID() TaskID {
	return TaskID(uuid.New())
}

// IsZero reports whether id is the zero value.
func (id TaskID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id TaskID) String() string {
	return uuid.UUID(id).String()
}

// ParseTaskID parses the textual form produced by String.
func ParseTaskID(s string) (TaskID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return TaskID{}, err
	}
	return TaskID(u), nil
}

// Handle is returned by Dispatcher.Submit and names a root entry.
type Handle TaskID

// ID returns the TaskID of the submitted entry.
func (h Handle) ID() TaskID { return TaskID(h) }

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool { return TaskID(h).IsZero() }

func (h Handle) String() string { return TaskID(h).String() }
