package util

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ParseInt parses a string to an integer, returning defaultValue if parsing fails
func ParseInt(s string, defaultValue int) int {
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	return defaultValue
}

// ParseBool parses form-style booleans ("true", "1", "on"), returning
// defaultValue for empty or unknown input.
func ParseBool(s string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "on", "yes":
		return true
	case "false", "0", "off", "no":
		return false
	default:
		return defaultValue
	}
}

// IsValidID reports whether s is a canonical UUID.
func IsValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// ParseID reads a UUID path parameter. On failure it responds 400 and returns false.
func ParseID(c *gin.Context, param string) (string, bool) {
	raw := c.Param(param)
	id, err := uuid.Parse(raw)
	if err != nil {
		RespondBadRequest(c, "invalid "+param+" format")
		return "", false
	}
	return id.String(), true
}

// SplitCSV splits a comma-separated list, trimming blanks and dropping empties.
func SplitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
