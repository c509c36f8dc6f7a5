package firebase

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc"

	"github.com/arklim/ecotrack-accounts/internal/infra/config"
)

const (
	authEmulatorEnv      = "FIREBASE_AUTH_EMULATOR_HOST"
	firestoreEmulatorEnv = "FIRESTORE_EMULATOR_HOST"
)

// App holds the Firebase clients shared by the identity provider and document store adapters.
type App struct {
	app       *firebase.App
	auth      *auth.Client
	firestore *firestore.Client
	logger    *zap.Logger
}

// NewApp initialises the Firebase app once per process. Emulator hosts from cfg are
// exported to the environment variables the SDKs read. The Firestore client is built
// directly rather than through the app so its gRPC connection can be instrumented.
func NewApp(ctx context.Context, cfg config.FirebaseSettings, withFirestore bool, logger *zap.Logger) (*App, error) {
	if err := exportEmulatorHosts(cfg); err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}

	result := &App{app: app, auth: authClient, logger: logger}

	if withFirestore {
		// Firestore speaks gRPC; the stats handler puts its calls under the request span.
		fsOpts := append(opts, option.WithGRPCDialOption(grpc.WithStatsHandler(otelgrpc.NewClientHandler())))
		projectID := cfg.ProjectID
		if projectID == "" {
			projectID = firestore.DetectProjectID
		}
		fs, err := firestore.NewClient(ctx, projectID, fsOpts...)
		if err != nil {
			return nil, fmt.Errorf("init firestore: %w", err)
		}
		result.firestore = fs
	}

	logger.Info("firebase initialized",
		zap.String("project_id", cfg.ProjectID),
		zap.Bool("auth_emulator", cfg.AuthEmulatorHost != ""),
		zap.Bool("firestore", withFirestore),
		zap.Bool("firestore_emulator", cfg.FirestoreEmulatorHost != ""),
	)

	return result, nil
}

// Auth returns the Firebase Authentication client.
func (a *App) Auth() *auth.Client {
	return a.auth
}

// Firestore returns the Firestore client, nil unless requested at construction.
func (a *App) Firestore() *firestore.Client {
	return a.firestore
}

// Close releases the Firestore connection.
func (a *App) Close() error {
	if a.firestore == nil {
		return nil
	}
	a.logger.Info("closing firestore client")
	if err := a.firestore.Close(); err != nil {
		return fmt.Errorf("close firestore: %w", err)
	}
	return nil
}

func exportEmulatorHosts(cfg config.FirebaseSettings) error {
	if cfg.AuthEmulatorHost != "" {
		if err := os.Setenv(authEmulatorEnv, cfg.AuthEmulatorHost); err != nil {
			return fmt.Errorf("set %s: %w", authEmulatorEnv, err)
		}
	}
	if cfg.FirestoreEmulatorHost != "" {
		if err := os.Setenv(firestoreEmulatorEnv, cfg.FirestoreEmulatorHost); err != nil {
			return fmt.Errorf("set %s: %w", firestoreEmulatorEnv, err)
		}
	}
	return nil
}
