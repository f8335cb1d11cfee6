package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// ProductImagePath composes the object key of a product image: products/<owner>/<object><ext>.
func ProductImagePath(ownerID, objectID, ext string) (string, error) {
	owner, err := validateSegment("ownerID", ownerID)
	if err != nil {
		return "", err
	}
	object, err := validateSegment("objectID", objectID)
	if err != nil {
		return "", err
	}
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && (!strings.HasPrefix(ext, ".") || strings.ContainsAny(ext[1:], "./\\")) {
		return "", fmt.Errorf("storage: invalid extension %q", ext)
	}
	return "products/" + owner + "/" + object + ext, nil
}

// PublicURL joins base and key.
func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

// ObjectKey extracts the object key from a URL produced by PublicURL with the same base. URLs
// outside base are rejected so callers cannot delete arbitrary objects.
func ObjectKey(base, rawURL string) (string, error) {
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(rawURL, prefix) {
		return "", fmt.Errorf("storage: %q is not served from %s", rawURL, base)
	}
	key, err := url.PathUnescape(strings.TrimPrefix(rawURL, prefix))
	if err != nil {
		return "", fmt.Errorf("storage: decode %q: %w", rawURL, err)
	}
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("storage: invalid object key in %q", rawURL)
	}
	return key, nil
}

// ProductImageOwner reports the owner segment of a URL whose path ends in a key built by
// ProductImagePath. ok is false for any other URL, including ones with encoded separators.
func ProductImageOwner(rawURL string) (owner string, ok bool) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	escaped := parsed.EscapedPath()
	lowered := strings.ToLower(escaped)
	if strings.Contains(lowered, "%2f") || strings.Contains(lowered, "%5c") || strings.Contains(escaped, "..") {
		return "", false
	}
	segments := strings.Split(escaped, "/")
	if len(segments) < 3 {
		return "", false
	}
	tail := segments[len(segments)-3:]
	if tail[0] != "products" || tail[1] == "" || tail[2] == "" {
		return "", false
	}
	owner, err = url.PathUnescape(tail[1])
	if err != nil {
		return "", false
	}
	return owner, true
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: %s is required", name)
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: %s contains invalid traversal sequence", name)
	}
	return value, nil
}
