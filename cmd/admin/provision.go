package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"qrintake/internal/auth"
	"qrintake/internal/config"
	"qrintake/internal/database"
	"qrintake/internal/geofence"
	"qrintake/internal/qrcode"
)

type provisionRequest struct {
	Username string
	WithCode bool
	Code     string
	BaseURL  string
	Fence    *geofence.Location
}

type provisioned struct {
	User         database.User
	Password     string
	QrCode       *database.QrCode
	Fence        *geofence.Location
	RenderQueued bool
}

// provision writes the owner, code and fence in one transaction, so a
// rejected code or fence leaves no account behind.
func provision(ctx context.Context, db *gorm.DB, req provisionRequest) (*provisioned, error) {
	if req.WithCode && strings.TrimSpace(req.BaseURL) == "" {
		return nil, errors.New("a public base url is required to create a qr code")
	}

	password, err := randomPassword(24)
	if err != nil {
		return nil, err
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	out := &provisioned{Password: password, Fence: req.Fence}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		out.User = database.User{Username: req.Username, PasswordHash: hashed}
		if err := tx.Create(&out.User).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("user %q already exists", req.Username)
			}
			return fmt.Errorf("create user: %w", err)
		}

		if req.WithCode {
			code := req.Code
			if code == "" {
				code = qrcode.NewCode()
			}
			qr, err := qrcode.NewDirectory(tx).Create(ctx, qrcode.CreateRequest{
				ActorID:   out.User.ID,
				OwnerID:   out.User.ID,
				Code:      code,
				TargetURL: qrcode.FormURL(req.BaseURL, code),
			})
			if err != nil {
				return fmt.Errorf("create qr code: %w", err)
			}
			out.QrCode = qr
		}

		if req.Fence != nil {
			if _, err := geofence.NewPolicy(tx).Upsert(ctx, out.User.ID, *req.Fence); err != nil {
				return fmt.Errorf("set geofence: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// parseGeofence reads "lat,lon,radiusMeters".
func parseGeofence(s string) (geofence.Location, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return geofence.Location{}, fmt.Errorf("want lat,lon,radiusMeters, got %q", s)
	}
	var vals [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geofence.Location{}, fmt.Errorf("parse %q: %w", p, err)
		}
		vals[i] = v
	}
	loc := geofence.Location{Latitude: vals[0], Longitude: vals[1], RadiusMeters: vals[2]}
	if err := loc.Validate(); err != nil {
		return geofence.Location{}, err
	}
	return loc, nil
}

func writeSummary(w io.Writer, p *provisioned) error {
	var b strings.Builder
	fmt.Fprintf(&b, "owner id:  %d\n", p.User.ID)
	fmt.Fprintf(&b, "username:  %s\n", p.User.Username)
	fmt.Fprintf(&b, "password:  %s\n", p.Password)
	if p.QrCode != nil {
		fmt.Fprintf(&b, "qr code:   %s (id %d)\n", p.QrCode.Code, p.QrCode.ID)
		fmt.Fprintf(&b, "form url:  %s\n", p.QrCode.URL)
		if p.RenderQueued {
			b.WriteString("qr image:  queued for rendering\n")
		} else {
			b.WriteString("qr image:  not queued (no redis configured)\n")
		}
	} else {
		fmt.Fprintf(&b, "qr code:   none; POST /v1/qrcodes with ownerId %d after logging in\n", p.User.ID)
	}
	if p.Fence != nil {
		fmt.Fprintf(&b, "geofence:  %.6f,%.6f within %.0fm\n", p.Fence.Latitude, p.Fence.Longitude, p.Fence.RadiusMeters)
	} else {
		b.WriteString("geofence:  none (code usable from anywhere)\n")
	}
	b.WriteString("the password is shown once; store it now.\n")
	_, err := io.WriteString(w, b.String())
	return err
}

type dbFlags struct {
	host, name, user, password, sslMode string
	port                                int
}

// config fills unset flags from the environment the api binary reads.
func (f dbFlags) config() (config.DatabaseConfig, error) {
	cfg := config.DatabaseConfig{
		Host:     envOr(f.host, "DATABASE_HOST", "localhost"),
		Name:     envOr(f.name, "POSTGRES_DB", ""),
		User:     envOr(f.user, "POSTGRES_USER", ""),
		Password: envOr(f.password, "POSTGRES_PASSWORD", ""),
		SSLMode:  envOr(f.sslMode, "DATABASE_SSLMODE", "disable"),
		Port:     f.port,
	}
	if cfg.Port <= 0 {
		p, err := strconv.Atoi(envOr("", "DATABASE_PORT", "5432"))
		if err != nil {
			return config.DatabaseConfig{}, fmt.Errorf("parse DATABASE_PORT: %w", err)
		}
		cfg.Port = p
	}
	for _, req := range []struct{ val, env string }{
		{cfg.Name, "POSTGRES_DB"},
		{cfg.User, "POSTGRES_USER"},
		{cfg.Password, "POSTGRES_PASSWORD"},
	} {
		if req.val == "" {
			return config.DatabaseConfig{}, fmt.Errorf("%s is required", req.env)
		}
	}
	return cfg, nil
}

func envOr(flagValue, env, fallback string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v
	}
	return fallback
}

func redisAddrFromEnv() string {
	host := strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if host == "" {
		return ""
	}
	return host + ":" + envOr("", "REDIS_PORT", "6379")
}

func randomPassword(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
