package core

// Error codes quoted to support staff:
//
//	PRD001 duplicate SKU          PRD002 invalid product fields
//	PRD003 invalid stock          PRD004 record not found
//	CAT001 empty category name
//	IMP001 too many imports       IMP002 import not found
//	FILE001 file too large        FILE002 invalid CSV
//	FILE003 invalid XLSX          FILE004 no file provided
//	FILE005 empty file            FILE006 unsupported file type
//	USR001 unknown role
//	AUTH001 bad credentials       AUTH002 session expired
//	AUTH003 not allowed
//	DB001 store unreachable       DB002 store timeout
//	REQ001 request cancelled      REQ002 request timeout
//	REQ003 unreadable request
//	RATE001 rate limited
//	ERR000 anything else (check the logs for the technical error)

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage is the user-facing rendering of an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

// sentinelMessages are matched with errors.Is before any text pattern.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrDuplicateSKU, UserMessage{"This SKU is already registered", "Use a different SKU or edit the existing product", "PRD001"}},
	{ErrInvalidProduct, UserMessage{"Some product fields are invalid", "Review the highlighted fields and try again", "PRD002"}},
	{ErrInvalidStock, UserMessage{"Stock must be zero or a positive whole number", "Enter a valid quantity", "PRD003"}},
	{ErrNotFound, UserMessage{"The requested record does not exist", "It may have been deleted. Refresh and try again", "PRD004"}},
	{ErrEmptyCategory, UserMessage{"Category name is required", "Enter a name for the category", "CAT001"}},
	{ErrTooManyImports, UserMessage{"Too many imports are running", "Please wait a moment and try again", "IMP001"}},
	{ErrImportNotFound, UserMessage{"Import not found", "The import may have expired. Start a new import", "IMP002"}},
	{ErrEmptyFile, UserMessage{"The uploaded file is empty", "Upload a spreadsheet with a header row and products", "FILE005"}},
	{ErrUnsupportedFile, UserMessage{"This file type is not supported", "Upload an .xlsx, .xls or .csv file", "FILE006"}},
	{ErrUnknownRole, UserMessage{"Unknown role", "Use admin or assistant", "USR001"}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns match case-insensitively; the first match wins.
var errorPatterns = []errorPattern{
	{"duplicate key", UserMessage{"This SKU is already registered", "Use a different SKU or edit the existing product", "PRD001"}},
	{"file too large", UserMessage{"The file is too large", "Split the products into smaller files", "FILE001"}},
	{"request body too large", UserMessage{"The file is too large", "Split the products into smaller files", "FILE001"}},
	{"invalid csv", UserMessage{"The file is not a valid CSV", "Save the sheet as comma-separated values and try again", "FILE002"}},
	{"invalid xls", UserMessage{"The workbook could not be read", "Open the file in a spreadsheet tool and save it again", "FILE003"}},
	{"no file provided", UserMessage{"No file was selected", "Choose an .xlsx, .xls or .csv file to import", "FILE004"}},
	{"invalid credentials", UserMessage{"Email or password is incorrect", "Check your credentials and try again", "AUTH001"}},
	{"session expired", UserMessage{"Your session has expired", "Sign in again", "AUTH002"}},
	{"invalid token", UserMessage{"Your session has expired", "Sign in again", "AUTH002"}},
	{"forbidden", UserMessage{"You do not have permission to do this", "Ask an administrator for access", "AUTH003"}},
	{"connection refused", UserMessage{"Unable to reach the database", "Please try again in a few moments", "DB001"}},
	{"server selection", UserMessage{"Unable to reach the database", "Please try again in a few moments", "DB001"}},
	{"no reachable servers", UserMessage{"Unable to reach the database", "Please try again in a few moments", "DB001"}},
	{"context canceled", UserMessage{"The request was cancelled", "Please try again", "REQ001"}},
	{"deadline exceeded", UserMessage{"The request timed out", "Please try again", "REQ002"}},
	{"timeout", UserMessage{"The database took too long to respond", "Please try again later", "DB002"}},
	{"invalid request body", UserMessage{"The request could not be read", "Check the submitted data and try again", "REQ003"}},
	{"invalid json", UserMessage{"The request could not be read", "Check the submitted data and try again", "REQ003"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error into a user message. A nil error
// yields the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	lower := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(lower, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than
// ERR000. Callers fall back to the technical text when it does not.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}
