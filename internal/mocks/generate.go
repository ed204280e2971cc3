// Package mocks provides mock implementations for testing the issuance core.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockCertificateRepository(ctrl)
//	mockRepo.EXPECT().RecordIssued(gomock.Any(), gomock.Any()).Return(record, nil)
package mocks

// Generate mock for CertificateRepository interface from internal/core package.
// This creates MockCertificateRepository with methods for all CertificateRepository interface methods:
// RecordPending, RecordIssued, RecordFailed, GetByRecipient, ListByEvent
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=certificate_repository_mock.go github.com/certmint/certmint-api/internal/core CertificateRepository

// Generate mock for LedgerSubmitter interface from internal/core package.
// This creates MockLedgerSubmitter with methods for all LedgerSubmitter interface methods:
// Submit
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=ledger_submitter_mock.go github.com/certmint/certmint-api/internal/core LedgerSubmitter

// Generate mock for ArtifactGenerator interface from internal/core package.
// This creates MockArtifactGenerator with methods for all ArtifactGenerator interface methods:
// Generate
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=artifact_generator_mock.go github.com/certmint/certmint-api/internal/core ArtifactGenerator

// Generate mock for ContentStore interface from internal/core package.
// This creates MockContentStore with methods for all ContentStore interface methods:
// Publish, PublishJSON
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=content_store_mock.go github.com/certmint/certmint-api/internal/core ContentStore

// Generate mock for NotificationQueue interface from internal/core package.
// This creates MockNotificationQueue with methods for all NotificationQueue interface methods:
// EnqueueBatch
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=notification_queue_mock.go github.com/certmint/certmint-api/internal/core NotificationQueue
