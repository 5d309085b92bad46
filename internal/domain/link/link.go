package link

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	// ErrValidation is the root of every input validation failure.
	ErrValidation = errors.New("validation failed")
	// ErrEmptyURL indicates that the destination URL is missing
	ErrEmptyURL = fmt.Errorf("%w: url is required", ErrValidation)
	// ErrInvalidURL indicates that the URL format is invalid
	ErrInvalidURL = fmt.Errorf("%w: invalid URL format", ErrValidation)
	// ErrInvalidScheme indicates that the URL scheme is not allowed
	ErrInvalidScheme = fmt.Errorf("%w: only http and https schemes are allowed", ErrValidation)
	// ErrInvalidAlias indicates that the alias does not match the allowed pattern or names a fixed route
	ErrInvalidAlias = fmt.Errorf("%w: alias must be 3-20 characters of letters, digits, '-' or '_' and not a reserved path", ErrValidation)
	// ErrInvalidVisibility indicates an unknown visibility value
	ErrInvalidVisibility = fmt.Errorf("%w: visibility must be PUBLIC or PRIVATE", ErrValidation)
	// ErrInvalidTitle indicates that the title is too long
	ErrInvalidTitle = fmt.Errorf("%w: title is too long", ErrValidation)
	// ErrUnsafeURL indicates that a threat classifier flagged the destination
	ErrUnsafeURL = fmt.Errorf("%w: malicious URL detected", ErrValidation)
	// ErrAliasExists indicates that the alias is already claimed by another link
	ErrAliasExists = fmt.Errorf("%w: alias already exists", ErrValidation)

	// ErrNotFound indicates that no link resolves from the given identifier
	ErrNotFound = errors.New("link not found")
	// ErrAllocationExhausted indicates that no free code was found within the retry budget
	ErrAllocationExhausted = errors.New("failed to allocate a unique code")
	// ErrDependencyUnavailable indicates that the backing store failed or timed out
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

const MaxTitleLength = 256

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,20}$`)

// reserved holds top-level paths served by fixed routes; an identifier with
// one of these names could never be reached through a redirect.
var reserved = map[string]struct{}{
	"admin":   {},
	"health":  {},
	"metrics": {},
	"public":  {},
	"shorten": {},
	"stats":   {},
}

// IsReserved reports whether value collides with a fixed route, ignoring case.
func IsReserved(value string) bool {
	_, ok := reserved[strings.ToLower(value)]
	return ok
}

type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

// ParseVisibility accepts PUBLIC or PRIVATE in any case; an empty value means PRIVATE.
func ParseVisibility(s string) (Visibility, error) {
	switch Visibility(strings.ToUpper(strings.TrimSpace(s))) {
	case "", VisibilityPrivate:
		return VisibilityPrivate, nil
	case VisibilityPublic:
		return VisibilityPublic, nil
	default:
		return "", ErrInvalidVisibility
	}
}

// Record is the canonical state of one short link. Only ClickCount,
// CachedInsight and InsightGeneratedAt change after creation.
type Record struct {
	Code               string
	DestinationURL     string
	Alias              string
	Visibility         Visibility
	Title              string
	ClickCount         int64
	CreatedAt          time.Time
	CachedInsight      string
	InsightGeneratedAt time.Time
}

// HasInsight reports whether the record carries a cached narrative with its timestamp.
func (r Record) HasInsight() bool {
	return r.CachedInsight != "" && !r.InsightGeneratedAt.IsZero()
}

// NormalizeURL trims the input, prepends https:// when no scheme is given and
// validates the result.
func NormalizeURL(rawURL string) (string, error) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return "", ErrEmptyURL
	}

	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") && !strings.Contains(s, "://") {
		s = "https://" + s
	}

	if err := ValidateURL(s); err != nil {
		return "", err
	}

	return s, nil
}

// ValidateURL validates that the URL has correct format and uses http/https scheme
// to prevent open redirect vulnerabilities and malicious redirects
func ValidateURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURL
	}

	if parsedURL.Scheme == "" {
		return ErrInvalidURL
	}

	scheme := strings.ToLower(parsedURL.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidScheme
	}

	if parsedURL.Host == "" || parsedURL.User != nil {
		return ErrInvalidURL
	}

	if strings.ContainsAny(parsedURL.Host, " \t") {
		return ErrInvalidURL
	}

	return nil
}

func ValidateAlias(alias string) error {
	if !aliasPattern.MatchString(alias) || IsReserved(alias) {
		return ErrInvalidAlias
	}
	return nil
}

func ValidateTitle(title string) error {
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return ErrInvalidTitle
	}
	return nil
}
