package input

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is the encoding of a response file
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
	FormatText Format = "text"
)

// extensionFormats maps accepted file extensions to their format
var extensionFormats = map[string]Format{
	".json": FormatJSON,
	".yaml": FormatYAML,
	".yml":  FormatYAML,
	".csv":  FormatCSV,
	".txt":  FormatText,
	".md":   FormatText,
}

// Validator validates response file paths
type Validator struct {
	formats map[string]Format
}

// NewValidator creates a validator for the built-in extensions plus any
// additional ones, which are read as plain text
func NewValidator(additionalExtensions []string) *Validator {
	formats := make(map[string]Format, len(extensionFormats)+len(additionalExtensions))
	for ext, f := range extensionFormats {
		formats[ext] = f
	}
	for _, ext := range additionalExtensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := formats[ext]; !ok {
			formats[ext] = FormatText
		}
	}
	return &Validator{formats: formats}
}

// ValidatePath checks if the path is valid
func (v *Validator) ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	return nil
}

// ValidateFileExtension checks if the file has an allowed extension
func (v *Validator) ValidateFileExtension(path string) error {
	_, err := v.FormatOf(path)
	return err
}

// FormatOf returns the format a file is read as
func (v *Validator) FormatOf(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "", fmt.Errorf("file must have an extension")
	}
	f, ok := v.formats[ext]
	if !ok {
		return "", fmt.Errorf("file extension %s is not allowed", ext)
	}
	return f, nil
}
