package domain

import "regexp"

// User-facing rejection reasons, kept stable because both front ends
// print them verbatim.
const (
	msgFieldsRequired  = "All fields are required!"
	msgInvalidEmail    = "Invalid email format. Must end with @university.com"
	msgInvalidPassword = "Invalid password format. Must start with uppercase, " +
		"contain at least 5 letters followed by 3+ digits"
	msgPasswordMismatch = "Passwords do not match!"
)

var (
	emailRx    = regexp.MustCompile(`^[a-zA-Z0-9._]+@university\.com$`)
	passwordRx = regexp.MustCompile(`^[A-Z][a-zA-Z]{4,}\d{3,}$`)
)

// ValidEmail reports whether email is a well-formed university address.
func ValidEmail(email string) bool { return emailRx.MatchString(email) }

// ValidPassword reports whether password starts with an upper-case letter,
// has at least five letters in total and ends with three or more digits.
func ValidPassword(password string) bool { return passwordRx.MatchString(password) }
