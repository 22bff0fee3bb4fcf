package validation

import (
	"strings"
	"testing"

	"github.com/kbukum/wirekit/errors"
)

func TestValidatorRequired(t *testing.T) {
	v := New()
	v.Required("root", "./src")
	if v.HasErrors() {
		t.Error("expected no errors for valid input")
	}

	v2 := New()
	v2.Required("root", "")
	if !v2.HasErrors() {
		t.Error("expected error for empty required field")
	}

	v3 := New()
	v3.Required("root", "   ")
	if !v3.HasErrors() {
		t.Error("expected error for whitespace-only required field")
	}
}

func TestValidatorRange(t *testing.T) {
	tests := []struct {
		name    string
		value   int
		wantErr bool
	}{
		{"in range", 8080, false},
		{"lower bound", 1, false},
		{"upper bound", 65535, false},
		{"below range", 0, true},
		{"above range", 70000, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := New().Range("port", tc.value, 1, 65535)
			if v.HasErrors() != tc.wantErr {
				t.Errorf("HasErrors() = %v, want %v (%v)", v.HasErrors(), tc.wantErr, v.Errors())
			}
		})
	}
}

func TestValidatorMin(t *testing.T) {
	if New().Min("workers", 0, 0).HasErrors() {
		t.Error("expected no error at the minimum")
	}
	if !New().Min("workers", -1, 0).HasErrors() {
		t.Error("expected error below the minimum")
	}
}

func TestValidatorIdentifier(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"Initialize", false},
		{"_build2", false},
		{"", false},
		{"2fast", true},
		{"new-app", true},
		{"a.b", true},
	}

	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			v := New().Identifier("func", tc.value)
			if v.HasErrors() != tc.wantErr {
				t.Errorf("Identifier(%q) errors = %v, want error %v", tc.value, v.Errors(), tc.wantErr)
			}
		})
	}
}

func TestValidatorDistinct(t *testing.T) {
	if New().Distinct("wrappers", []string{"Arc", "Rc", "Shared"}).HasErrors() {
		t.Error("expected no error for distinct values")
	}

	v := New().Distinct("wrappers", []string{"Arc", "Box", "Arc"})
	if !v.HasErrors() {
		t.Fatal("expected error for repeated value")
	}
	if !strings.Contains(v.Errors()[0].Message, `"Arc"`) {
		t.Errorf("expected message to name the repeated value, got %q", v.Errors()[0].Message)
	}
}

func TestValidatorOneOf(t *testing.T) {
	v := New()
	v.OneOf("format", "json", []string{"json", "console"})
	if v.HasErrors() {
		t.Error("expected no error for valid oneOf value")
	}

	v2 := New()
	v2.OneOf("format", "xml", []string{"json", "console"})
	if !v2.HasErrors() {
		t.Error("expected error for invalid oneOf value")
	}

	// Empty should be skipped
	v3 := New()
	v3.OneOf("format", "", []string{"json"})
	if v3.HasErrors() {
		t.Error("expected no error for empty oneOf value")
	}
}

func TestValidatorCustom(t *testing.T) {
	v := New()
	v.Custom(true, "field", "should pass")
	if v.HasErrors() {
		t.Error("expected no error for true condition")
	}

	v2 := New()
	v2.Custom(false, "field", "custom error")
	if !v2.HasErrors() {
		t.Error("expected error for false condition")
	}
	if v2.Errors()[0].Message != "custom error" {
		t.Errorf("expected 'custom error', got %q", v2.Errors()[0].Message)
	}
}

func TestValidatorValidate(t *testing.T) {
	v := New()
	v.Required("root", "./src")
	if appErr := v.Validate(); appErr != nil {
		t.Error("expected nil for valid input")
	}
	if err := v.Err(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}

	v2 := New()
	v2.Required("root", "")
	v2.Required("package", "")
	appErr := v2.Validate()
	if appErr == nil {
		t.Fatal("expected error")
	}
	if appErr.Code != errors.ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", appErr.Code)
	}
	if appErr.Details == nil {
		t.Fatal("expected details in error")
	}
	if !strings.Contains(appErr.Message, "root") || !strings.Contains(appErr.Message, "package") {
		t.Errorf("expected both fields in message, got %q", appErr.Message)
	}
	if v2.Err() == nil {
		t.Error("expected Err() to report the same failure")
	}
}

func TestValidatorChaining(t *testing.T) {
	v := New()
	result := v.Required("root", ".").Min("workers", 4, 0).Identifier("func", "Build")
	if result != v {
		t.Error("expected chaining to return same validator")
	}
	if v.HasErrors() {
		t.Error("expected no errors for valid chained validation")
	}
}

func TestStructValidateValid(t *testing.T) {
	type Request struct {
		Type      string `json:"type" validate:"required"`
		Qualifier string `json:"qualifier"`
	}

	if err := Validate(Request{Type: "app.Server"}); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestStructValidateInvalid(t *testing.T) {
	type Request struct {
		Type string `json:"type" validate:"required"`
	}

	err := Validate(Request{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Message != "type: is required" {
		t.Errorf("unexpected message %q", appErr.Message)
	}
	fields, ok := appErr.Details["fields"].([]FieldError)
	if !ok || len(fields) != 1 || fields[0].Field != "type" {
		t.Errorf("unexpected field details %#v", appErr.Details["fields"])
	}
}

func TestStructValidateNested(t *testing.T) {
	type Server struct {
		Port int `json:"port" validate:"min=1,max=65535"`
	}
	type Config struct {
		Server Server `json:"server"`
	}

	err := Validate(Config{Server: Server{Port: 0}})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "server.port: must be at least 1") {
		t.Errorf("expected nested field path in %q", err.Error())
	}
}

func TestStructValidateMaxMin(t *testing.T) {
	type Input struct {
		Code string `json:"code" validate:"required,min=3,max=10"`
	}

	if err := Validate(Input{Code: "abc"}); err != nil {
		t.Errorf("expected valid, got %v", err)
	}
	err := Validate(Input{Code: "ab"})
	if err == nil {
		t.Fatal("expected error for code too short")
	}
	if !strings.Contains(err.Error(), "at least 3 characters") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"Root":          "root",
		"CacheFile":     "cache_file",
		"Server.Port":   "server.port",
		"already_snake": "already_snake",
	}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
