//go:build integration

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/testcontainers/testcontainers-go"
	tcwait "github.com/testcontainers/testcontainers-go/wait"

	"github.com/vibast-solutions/ms-go-mobile-payments/app/entity"
)

func setupMySQL(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mysql:8.4",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "root",
			"MYSQL_DATABASE":      "payments_test",
		},
		WaitingFor: tcwait.ForAll(
			tcwait.ForLog("port: 3306  MySQL Community Server"),
			tcwait.ForListeningPort("3306/tcp"),
		).WithDeadline(120 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get host: %v", err)
	}
	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}

	dsn := fmt.Sprintf("root:root@tcp(%s:%s)/payments_test?parseTime=true", host, port.Port())
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("failed to ping db: %v", err)
	}
	if _, err := Migrate(ctx, db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return db
}

func TestTransactionRepositoryIntegration(t *testing.T) {
	db := setupMySQL(t)
	ctx := context.Background()
	repo := NewTransactionRepository(db)
	now := time.Now().UTC().Truncate(time.Millisecond)

	txn := &entity.Transaction{
		Reference:     "KAM-INTEGRATION1",
		UserID:        "user-1",
		Amount:        1000,
		Currency:      "XAF",
		PaymentMethod: "mtn",
		Status:        entity.TransactionStatusPending,
		Metadata:      map[string]string{"phone_number": "677123456"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := repo.Create(ctx, txn); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(ctx, txn); err != ErrTransactionAlreadyExists {
		t.Fatalf("expected ErrTransactionAlreadyExists, got %v", err)
	}

	if other, err := repo.FindByReferenceForUser(ctx, txn.Reference, "user-2"); err != nil || other != nil {
		t.Fatalf("expected no transaction for another user, got %+v err=%v", other, err)
	}

	url := "https://pay.example/abc"
	if err := repo.AttachCheckout(ctx, txn.Reference, StatusUpdate{PaymentURL: &url, Metadata: map[string]string{"provider": "maviance"}, UpdatedAt: now}); err != nil {
		t.Fatalf("attach checkout failed: %v", err)
	}

	providerStatus := "SUCCESSFUL"
	won, err := repo.TransitionStatus(ctx, txn.Reference, entity.TransactionStatusCompleted, entity.TransactionStatusCompleted.TransitionSources(), StatusUpdate{
		ProviderStatus: &providerStatus,
		UpdatedAt:      now.Add(time.Second),
	})
	if err != nil || !won {
		t.Fatalf("expected first completion to win, won=%v err=%v", won, err)
	}

	won, err = repo.TransitionStatus(ctx, txn.Reference, entity.TransactionStatusFailed, entity.TransactionStatusFailed.TransitionSources(), StatusUpdate{UpdatedAt: now.Add(2 * time.Second)})
	if err != nil || won {
		t.Fatalf("expected completed transaction to stay completed, won=%v err=%v", won, err)
	}

	stored, err := repo.FindByReference(ctx, txn.Reference)
	if err != nil || stored == nil {
		t.Fatalf("find failed: %+v err=%v", stored, err)
	}
	if stored.Status != entity.TransactionStatusCompleted || stored.PaymentURL == nil || *stored.PaymentURL != url {
		t.Fatalf("unexpected stored transaction: %+v", stored)
	}
	if stored.Metadata["phone_number"] != "677123456" || stored.Metadata["provider"] != "maviance" {
		t.Fatalf("expected merged metadata, got %+v", stored.Metadata)
	}

	events := NewPaymentEventRepository(db)
	oldStatus := string(entity.TransactionStatusPending)
	for _, eventType := range []string{entity.EventPaymentReconciled, entity.EventPremiumActivated} {
		if err := events.Create(ctx, &entity.PaymentEvent{
			TransactionID: stored.ID,
			Reference:     stored.Reference,
			EventType:     eventType,
			Source:        entity.EventSourceWebhook,
			OldStatus:     &oldStatus,
			NewStatus:     string(entity.TransactionStatusCompleted),
			CreatedAt:     now,
		}); err != nil {
			t.Fatalf("create event failed: %v", err)
		}
	}
	listed, err := events.ListByTransaction(ctx, stored.ID)
	if err != nil {
		t.Fatalf("list events failed: %v", err)
	}
	if len(listed) != 2 || listed[0].EventType != entity.EventPaymentReconciled || listed[1].EventType != entity.EventPremiumActivated {
		t.Fatalf("unexpected events: %+v", listed)
	}
	if listed[0].OldStatus == nil || *listed[0].OldStatus != oldStatus || listed[0].PayloadJSON != nil {
		t.Fatalf("unexpected event columns: %+v", listed[0])
	}
}

func TestConcurrentGrantPremiumIntegration(t *testing.T) {
	db := setupMySQL(t)
	ctx := context.Background()
	profiles := NewProfileRepository(db)
	subscriptions := NewSubscriptionRepository(db)

	if _, err := db.ExecContext(ctx, `INSERT INTO profiles (id, email) VALUES (?, ?)`, "user-1", "user@example.com"); err != nil {
		t.Fatalf("seed profile failed: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	grants := 0
	created := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			now := time.Now().UTC()
			granted, err := profiles.GrantPremium(ctx, "user-1", "KAM-RACE", now)
			if err != nil {
				t.Errorf("grant failed: %v", err)
				return
			}
			err = subscriptions.Create(ctx, &entity.Subscription{
				UserID:               "user-1",
				Plan:                 "premium",
				Status:               entity.SubscriptionStatusActive,
				TransactionReference: "KAM-RACE",
				StartsAt:             now,
				ExpiresAt:            now.Add(365 * 24 * time.Hour),
				CreatedAt:            now,
			})
			mu.Lock()
			defer mu.Unlock()
			if granted {
				grants++
			}
			if err == nil {
				created++
			} else if err != ErrSubscriptionAlreadyExists {
				t.Errorf("unexpected subscription error: %v", err)
			}
		}()
	}
	wg.Wait()

	if grants != 1 || created != 1 {
		t.Fatalf("expected exactly one grant and one subscription, got grants=%d subscriptions=%d", grants, created)
	}

	profile, err := profiles.FindByID(ctx, "user-1")
	if err != nil || profile == nil || !profile.IsPremium || profile.PaymentReference == nil || *profile.PaymentReference != "KAM-RACE" {
		t.Fatalf("unexpected profile: %+v err=%v", profile, err)
	}

	subscription, err := subscriptions.FindByUserReference(ctx, "user-1", "KAM-RACE")
	if err != nil || subscription == nil || subscription.Status != entity.SubscriptionStatusActive {
		t.Fatalf("unexpected subscription: %+v err=%v", subscription, err)
	}
	if missing, err := subscriptions.FindByUserReference(ctx, "user-2", "KAM-RACE"); err != nil || missing != nil {
		t.Fatalf("expected no subscription for another user, got %+v err=%v", missing, err)
	}
}
