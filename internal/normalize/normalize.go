// Package normalize rewrites image hosting share links into URLs the remote
// generation service can fetch directly.
//
// Normalization is best-effort: input that matches no known shape is returned
// unchanged, and nothing here validates that the result is reachable.
package normalize

import (
	"regexp"
	"strings"
)

// Kind identifies which rewrite rule matched a URL.
type Kind string

const (
	// KindUnknown means no rule matched; the URL is passed through.
	KindUnknown Kind = "unknown"
	// KindDirectImage is an image host that already serves raw files.
	KindDirectImage Kind = "direct_image"
	// KindSharedDrive is a Google Drive share link.
	KindSharedDrive Kind = "shared_drive"
	// KindCloudStorage is a Dropbox share link.
	KindCloudStorage Kind = "cloud_storage"
)

// driveDownloadURL is the direct-download form for a Drive file identifier.
const driveDownloadURL = "https://drive.google.com/uc?export=download&id="

var (
	directImageHosts  = []string{"ibb.co", "imgbb.com"}
	sharedDriveHosts  = []string{"drive.google.com", "docs.google.com"}
	cloudStorageHosts = []string{"dropbox.com"}

	driveFilePath = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	driveIDQuery  = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
)

// Classify reports which rule URL would apply to raw.
func Classify(raw string) Kind {
	switch {
	case containsAny(raw, directImageHosts):
		return KindDirectImage
	case driveID(raw) != "":
		return KindSharedDrive
	case containsAny(raw, cloudStorageHosts):
		return KindCloudStorage
	default:
		return KindUnknown
	}
}

// URL returns a directly fetchable form of raw. It never fails and is
// idempotent: URL(URL(x)) == URL(x).
func URL(raw string) string {
	switch Classify(raw) {
	case KindDirectImage:
		return raw
	case KindSharedDrive:
		return driveDownloadURL + driveID(raw)
	case KindCloudStorage:
		out := strings.Replace(raw, "?dl=0", "?dl=1", 1)
		return strings.Replace(out, "&dl=0", "&dl=1", 1)
	default:
		return raw
	}
}

// driveID extracts a Drive file identifier, or "" when raw carries none.
// The /file/d/<id> path form is recognised on any host; the id=<id> query
// form only on Drive hosts.
func driveID(raw string) string {
	if m := driveFilePath.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if containsAny(raw, sharedDriveHosts) {
		if m := driveIDQuery.FindStringSubmatch(raw); m != nil {
			return m[1]
		}
	}
	return ""
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
