package backend

import (
	"context"
	"io"
	"strings"

	"github.com/psantana5/sitesync/pkg/config"
	"github.com/psantana5/sitesync/pkg/models"
)

// Client bundles a typed repository per entity kind over one transport
type Client struct {
	transport *Transport

	Workers              *Repository[models.Worker]
	Attendance           *Repository[models.Attendance]
	Tasks                *Repository[models.Task]
	TaskAssignments      *Repository[models.TaskAssignment]
	Equipment            *Repository[models.Equipment]
	EquipmentAssignments *Repository[models.EquipmentAssignment]
	ProgressReports      *Repository[models.ProgressReport]
	ReportPhotos         *Repository[models.ReportPhoto]

	Auth *Auth
}

// NewClient creates a client for cfg
func NewClient(cfg config.Config, opts ...Option) *Client {
	return NewClientWithTransport(NewTransport(cfg, opts...))
}

// NewClientWithTransport builds every repository over t
func NewClientWithTransport(t *Transport) *Client {
	return &Client{
		transport:            t,
		Workers:              NewRepository[models.Worker](t),
		Attendance:           NewRepository[models.Attendance](t),
		Tasks:                NewRepository[models.Task](t),
		TaskAssignments:      NewRepository[models.TaskAssignment](t),
		Equipment:            NewRepository[models.Equipment](t),
		EquipmentAssignments: NewRepository[models.EquipmentAssignment](t),
		ProgressReports:      NewRepository[models.ProgressReport](t),
		ReportPhotos:         NewRepository[models.ReportPhoto](t),
		Auth:                 &Auth{transport: t},
	}
}

// Transport returns the underlying generic transport
func (c *Client) Transport() *Transport {
	return c.transport
}

// Upload stores a file for userID and returns its URL
func (c *Client) Upload(ctx context.Context, userID, filename string, r io.Reader) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", models.NewValidationError("upload", "user id is required")
	}
	return c.transport.Upload(ctx, userID, filename, r)
}

// Auth performs the credential exchange
type Auth struct {
	transport *Transport
}

const emailProvider = "email"

type registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Provider string `json:"provider"`
}

// Register creates an email/password account
func (a *Auth) Register(ctx context.Context, email, password string) (models.User, error) {
	if err := checkCredentials("register", email, password); err != nil {
		return models.User{}, err
	}
	var user models.User
	err := a.transport.save(ctx, "register", models.KindUser.Table(), registration{
		Email:    strings.TrimSpace(email),
		Password: password,
		Provider: emailProvider,
	}, &user)
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Login exchanges email and password for the user record
func (a *Auth) Login(ctx context.Context, email, password string) (models.User, error) {
	if err := checkCredentials("login", email, password); err != nil {
		return models.User{}, err
	}
	return a.transport.Login(ctx, LoginRequest{
		Email:    strings.TrimSpace(email),
		Password: password,
		Provider: emailProvider,
	})
}

func checkCredentials(op, email, password string) error {
	if strings.TrimSpace(email) == "" {
		return models.NewValidationError(op, "email is required")
	}
	if password == "" {
		return models.NewValidationError(op, "password is required")
	}
	return nil
}
