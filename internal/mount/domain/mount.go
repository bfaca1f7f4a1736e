// Package domain defines the mount table: path-scoped registrations of secret engines.
package domain

import (
	"maps"
	"strings"
	"time"

	validation "github.com/jellydator/validation"

	"github.com/google/uuid"
)

// ReservedPrefix is owned by the system backend and cannot be mounted over.
const ReservedPrefix = "sys/"

// MountConfig holds the tunable settings of a mount.
type MountConfig struct {
	DefaultLeaseTTL time.Duration     `json:"default_lease_ttl"`
	MaxLeaseTTL     time.Duration     `json:"max_lease_ttl"`
	Options         map[string]string `json:"options,omitempty"`
}

// Mount is a secret engine registered at Path. Disabled mounts stay in the table.
type Mount struct {
	ID          uuid.UUID
	Path        string
	Type        string
	Description string
	Config      MountConfig
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a deep copy of the mount.
func (m *Mount) Clone() *Mount {
	cloned := *m
	cloned.Config.Options = maps.Clone(m.Config.Options)
	return &cloned
}

// Overlaps reports whether the mount path equals path or one is a prefix of the other.
func (m *Mount) Overlaps(path string) bool {
	return strings.HasPrefix(m.Path, path) || strings.HasPrefix(path, m.Path)
}

// NormalizePath trims surrounding whitespace and slashes and appends a single trailing
// slash. An empty path stays empty.
func NormalizePath(path string) string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return ""
	}
	return path + "/"
}

// CreateMountInput contains the parameters of a new mount.
type CreateMountInput struct {
	Path        string
	Type        string
	Description string
	Config      MountConfig
}

// Validate checks the input. Path must already be normalized.
func (c *CreateMountInput) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path,
			validation.Required,
			validation.Length(1, 255),
			validation.By(notReserved),
			validation.By(noEmptySegments),
		),
		validation.Field(&c.Type, validation.Required, validation.Length(1, 64)),
		validation.Field(&c.Config, validation.By(validConfig)),
	)
}

// TuneMountInput changes the settings of an existing mount. Nil fields are left as is;
// Options replaces the whole option map when non-nil.
type TuneMountInput struct {
	Path            string
	Description     *string
	DefaultLeaseTTL *time.Duration
	MaxLeaseTTL     *time.Duration
	Options         map[string]string
}

// Apply writes the tuned settings into mount and validates the result.
func (t *TuneMountInput) Apply(mount *Mount) error {
	if t.Description != nil {
		mount.Description = *t.Description
	}
	if t.DefaultLeaseTTL != nil {
		mount.Config.DefaultLeaseTTL = *t.DefaultLeaseTTL
	}
	if t.MaxLeaseTTL != nil {
		mount.Config.MaxLeaseTTL = *t.MaxLeaseTTL
	}
	if t.Options != nil {
		mount.Config.Options = maps.Clone(t.Options)
	}
	return validation.Errors{"config": validConfig(mount.Config)}.Filter()
}

func notReserved(value any) error {
	path, _ := value.(string)
	if strings.HasPrefix(path, ReservedPrefix) {
		return validation.NewError("validation_mount_reserved", "path is reserved by the system backend")
	}
	return nil
}

func noEmptySegments(value any) error {
	path, _ := value.(string)
	if strings.Contains(path, "//") {
		return validation.NewError("validation_mount_segments", "path must not contain empty segments")
	}
	return nil
}

func validConfig(value any) error {
	config, _ := value.(MountConfig)
	if config.DefaultLeaseTTL < 0 || config.MaxLeaseTTL < 0 {
		return validation.NewError("validation_mount_ttl_negative", "lease ttls must not be negative")
	}
	if config.MaxLeaseTTL > 0 && config.DefaultLeaseTTL > config.MaxLeaseTTL {
		return validation.NewError("validation_mount_ttl_order", "default_lease_ttl must not exceed max_lease_ttl")
	}
	return nil
}
