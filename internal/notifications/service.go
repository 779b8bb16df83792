package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hauslist/hauslist-backend/pkg/db/models"
	"github.com/hauslist/hauslist-backend/pkg/enums"
	pkgerrors "github.com/hauslist/hauslist-backend/pkg/errors"
	"github.com/hauslist/hauslist-backend/pkg/pagination"
)

// Service defines notification list/read operations plus the billing alerts
// dispatched by the webhook and cron paths.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, hostID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, hostID uuid.UUID) (int64, error)
	NotifyBillingPaused(ctx context.Context, hostID, propertyID uuid.UUID) error
	NotifyTrialEnding(ctx context.Context, hostID, propertyID uuid.UUID, endsAt time.Time) error
}

// propertyResolver looks up the listing a billing alert refers to so its
// title can be carried in the message.
type propertyResolver interface {
	FindByIDAndHost(ctx context.Context, id, hostID uuid.UUID) (*models.Property, error)
}

type service struct {
	repo       Repository
	properties propertyResolver
}

// ListParams configures pagination for notifications.
type ListParams struct {
	HostID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// NewService wires notifications dependencies. The property resolver is
// optional; without it billing alerts fall back to a generic message.
func NewService(repo Repository, properties propertyResolver) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo, properties: properties}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.HostID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "host id required")
	}

	// The repository applies the next-page probe buffer itself.
	query := listNotificationsParams{
		HostID:     params.HostID,
		Limit:      params.Limit,
		UnreadOnly: params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}

	return &ListResult{
		Items:  rows,
		Cursor: cursor,
	}, nil
}

func (s *service) MarkRead(ctx context.Context, hostID, notificationID uuid.UUID) error {
	if hostID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "host id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, hostID, notificationID, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, hostID uuid.UUID) (int64, error) {
	if hostID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "host id required")
	}

	count, err := s.repo.MarkAllRead(ctx, hostID, time.Now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

func (s *service) NotifyBillingPaused(ctx context.Context, hostID, propertyID uuid.UUID) error {
	link := fmt.Sprintf("/host/properties/%s/billing", propertyID)
	message := "A payment failed and your listing was paused. Update your payment method to restore it."
	if title := s.propertyTitle(ctx, propertyID, hostID); title != "" {
		message = fmt.Sprintf("A payment failed and your listing %q was paused. Update your payment method to restore it.", title)
	}
	return s.create(ctx, &models.Notification{
		HostID:  hostID,
		Type:    enums.NotificationTypeBillingPaused,
		Title:   "Payment issue on your listing",
		Message: message,
		Link:    &link,
	})
}

func (s *service) NotifyTrialEnding(ctx context.Context, hostID, propertyID uuid.UUID, endsAt time.Time) error {
	link := fmt.Sprintf("/host/properties/%s/billing", propertyID)
	date := endsAt.UTC().Format("January 2, 2006")
	message := fmt.Sprintf("Your trial ends on %s. Billing starts automatically after that.", date)
	if title := s.propertyTitle(ctx, propertyID, hostID); title != "" {
		message = fmt.Sprintf("The trial for your listing %q ends on %s. Billing starts automatically after that.", title, date)
	}
	return s.create(ctx, &models.Notification{
		HostID:  hostID,
		Type:    enums.NotificationTypeTrialEnding,
		Title:   "Your free trial is ending soon",
		Message: message,
		Link:    &link,
	})
}

// propertyTitle resolves the listing title for an alert. Resolution failures
// must never block a dispatch, so any error degrades to the generic message.
func (s *service) propertyTitle(ctx context.Context, propertyID, hostID uuid.UUID) string {
	if s.properties == nil {
		return ""
	}
	property, err := s.properties.FindByIDAndHost(ctx, propertyID, hostID)
	if err != nil || property == nil {
		return ""
	}
	return property.Title
}

func (s *service) create(ctx context.Context, notification *models.Notification) error {
	if notification.HostID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "host id required")
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return nil
}
