package homework

import "fmt"

// Status is a review state reported by the homework API.
type Status string

const (
	StatusApproved  Status = "approved"
	StatusReviewing Status = "reviewing"
	StatusRejected  Status = "rejected"
)

const (
	fieldName   = "homework_name"
	fieldStatus = "status"
)

// NoHomeworksMessage is sent when the polled window contains no homework.
const NoHomeworksMessage = "В ответе нет домашних работ."

var verdicts = map[Status]string{
	StatusApproved:  "Работа проверена: ревьюеру всё понравилось. Ура!",
	StatusReviewing: "Работа взята на проверку ревьюером.",
	StatusRejected:  "Работа проверена: у ревьюера есть замечания.",
}

// Record is a single homework entry with a recognized status.
type Record struct {
	Name   string
	Status Status
}

// Verdict returns the fixed text for a status.
func Verdict(status Status) (string, bool) {
	text, ok := verdicts[status]
	return text, ok
}

// ParseRecord extracts the name and status of one homework entry.
func ParseRecord(entry any) (Record, error) {
	item, ok := entry.(map[string]any)
	if !ok {
		return Record{}, &ShapeError{Field: fieldHomeworks, Reason: "entry is not a JSON object"}
	}
	name, ok := item[fieldName]
	if !ok {
		return Record{}, &ShapeError{Field: fieldName, Reason: "missing"}
	}
	status, ok := item[fieldStatus]
	if !ok {
		return Record{}, &ShapeError{Field: fieldStatus, Reason: "missing"}
	}

	record := Record{Name: fmt.Sprint(name), Status: Status(fmt.Sprint(status))}
	if _, ok := verdicts[record.Status]; !ok {
		return Record{}, &UnknownVerdictError{Status: string(record.Status)}
	}
	return record, nil
}

// ParseStatus renders the notification text for one homework entry.
func ParseStatus(entry any) (string, error) {
	record, err := ParseRecord(entry)
	if err != nil {
		return "", err
	}
	return Message(record), nil
}

// Message formats a status change notification.
func Message(record Record) string {
	return fmt.Sprintf("Изменился статус проверки работы \"%s\". %s", record.Name, verdicts[record.Status])
}

// FailureMessage formats the notification sent when a cycle fails.
func FailureMessage(err error) string {
	return fmt.Sprintf("Сбой в работе программы: %v", err)
}
