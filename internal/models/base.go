package models

import (
	"database/sql/driver"
	"strings"

	"github.com/google/uuid"
)

func generateUUID() string {
	return uuid.New().String()
}

// StringArray stores a list of ids in a text column using the postgres array
// literal form "{a,b,c}". Elements must not contain commas or braces, which
// holds for UUIDs.
type StringArray []string

// Scan implements the sql.Scanner interface for reading from database
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	var str string
	switch v := value.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		*a = nil
		return nil
	}

	str = strings.TrimPrefix(str, "{")
	str = strings.TrimSuffix(str, "}")

	if str == "" {
		*a = StringArray{}
		return nil
	}

	*a = strings.Split(str, ",")
	return nil
}

// Value implements the driver.Valuer interface for writing to database
func (a StringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "{}", nil
	}
	return "{" + strings.Join(a, ",") + "}", nil
}

// All returns every model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Tag{},
		&Video{},
		&Post{},
		&Comment{},
		&Like{},
		&Subscription{},
		&View{},
		&Playlist{},
		&PlaylistEntry{},
		&Notification{},
	}
}
