package orchestrator

import (
	"context"

	"github.com/psantana5/sitesync/pkg/models"
)

// Register creates an email account and makes it the session user
func (o *Orchestrator) Register(ctx context.Context, email, password string) (models.User, error) {
	user, err := o.client.Auth.Register(ctx, email, password)
	o.metrics.RecordCommand("register", err)
	if err != nil {
		return models.User{}, err
	}
	o.startSession(user)
	return user, nil
}

// Login exchanges credentials and makes the account the session user
func (o *Orchestrator) Login(ctx context.Context, email, password string) (models.User, error) {
	user, err := o.client.Auth.Login(ctx, email, password)
	o.metrics.RecordCommand("login", err)
	if err != nil {
		return models.User{}, err
	}
	o.startSession(user)
	return user, nil
}

// Logout clears the session user and every cached record
func (o *Orchestrator) Logout() {
	o.SetUserID("")
	o.notify()
}

func (o *Orchestrator) startSession(user models.User) {
	o.SetUserID(user.ID)
	o.logger.Info("Session started", map[string]interface{}{"user": user.ID})
	o.notify()
}
