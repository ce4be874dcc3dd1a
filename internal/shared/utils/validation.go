// Package utils validates data received from terminal clients.
package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Limits for data arriving from terminal clients (in bytes)
const (
	MaxInputSize     = 64 * 1024        // one input frame
	MaxMountFileSize = 4 * 1024 * 1024  // one mounted file
	MaxMountSize     = 32 * 1024 * 1024 // all mounted files together
	MaxMountFiles    = 10000
	MaxPathLength    = 1024
)

// Username length limits
const (
	MinUsernameLength = 1
	MaxUsernameLength = 32
)

// UsernamePattern matches names usable in prompts and history keys.
var UsernamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]*$`)

// ValidateUsername checks a user name shown in the prompt.
func ValidateUsername(username string) error {
	if n := len(username); n < MinUsernameLength || n > MaxUsernameLength {
		return fmt.Errorf("username must be %d-%d characters", MinUsernameLength, MaxUsernameLength)
	}
	if !UsernamePattern.MatchString(username) {
		return fmt.Errorf("username %q must be lowercase letters, digits, '_' or '-'", username)
	}
	return nil
}

// ValidateInput checks one chunk of keystrokes.
func ValidateInput(data string) error {
	if len(data) > MaxInputSize {
		return fmt.Errorf("input of %d bytes exceeds maximum %d bytes", len(data), MaxInputSize)
	}
	return nil
}

// ValidateMountFiles checks a path-to-content map before it is mounted.
func ValidateMountFiles(files map[string]string) error {
	if len(files) > MaxMountFiles {
		return fmt.Errorf("%d files exceeds maximum %d", len(files), MaxMountFiles)
	}

	total := 0
	for name, content := range files {
		if err := ValidateMountPath(name); err != nil {
			return err
		}
		if len(content) > MaxMountFileSize {
			return fmt.Errorf("file %q of %d bytes exceeds maximum %d bytes", name, len(content), MaxMountFileSize)
		}
		total += len(content)
		if total > MaxMountSize {
			return fmt.Errorf("files exceed maximum total size %d bytes", MaxMountSize)
		}
	}
	return nil
}

// ValidateMountPath checks a relative file path inside the workspace.
func ValidateMountPath(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("empty file path")
	case len(name) > MaxPathLength:
		return fmt.Errorf("file path exceeds %d bytes", MaxPathLength)
	case !utf8.ValidString(name):
		return fmt.Errorf("file path %q is not valid UTF-8", name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("file path %q contains NUL", name)
	}

	for _, seg := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return fmt.Errorf("file path %q escapes the workspace", name)
		}
	}
	return nil
}
