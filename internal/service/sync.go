package service

import (
	"context"
	"time"

	"github.com/aide-monitoring/workflow-tracker/internal/bookkeeper"
	"github.com/aide-monitoring/workflow-tracker/internal/events"
	"github.com/aide-monitoring/workflow-tracker/internal/orthanc"
	"github.com/aide-monitoring/workflow-tracker/internal/store"
	"github.com/aide-monitoring/workflow-tracker/internal/store/model"
	"go.uber.org/zap"
)

// StudyCatalog lists the studies held by the upstream archive.
type StudyCatalog interface {
	ListStudies(ctx context.Context) ([]string, error)
	GetStudy(ctx context.Context, studyID string) (*orthanc.Study, error)
}

type SyncedStudy struct {
	StudyID     string
	StudyUID    string
	PatientName *string
	SyncedAt    time.Time
}

type SyncResult struct {
	Synced  int
	Studies []SyncedStudy
}

type upstreamStudy struct {
	id          string
	patientName string
}

// SyncService rebuilds lost workflow rows from Bookkeeper history.
type SyncService struct {
	store      store.Store
	bookkeeper bookkeeper.Reader
	catalog    StudyCatalog
	publisher  events.Publisher
}

func NewSyncService(s store.Store, reader bookkeeper.Reader, catalog StudyCatalog, publisher events.Publisher) *SyncService {
	return &SyncService{store: s, bookkeeper: reader, catalog: catalog, publisher: publisher}
}

// Sync inserts a row for every study Mercure processed that still exists upstream and is not
// tracked yet. Rows are optimistic: the gateway send succeeded and AI results came back.
// All inserts are committed together; running it again inserts nothing new.
func (s *SyncService) Sync(ctx context.Context) (*SyncResult, error) {
	log := zap.S().Named("sync_service")

	if !s.bookkeeper.Configured() {
		return nil, NewErrNotConfigured("Mercure Bookkeeper not configured")
	}

	records, err := s.bookkeeper.AllSeries(ctx)
	if err != nil {
		return nil, mapBookkeeperErr(err)
	}
	log.Infof("found %d series in bookkeeper", len(records))

	upstream, err := s.upstreamStudies(ctx)
	if err != nil {
		return nil, err
	}

	txCtx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Studies: []SyncedStudy{}}
	for _, record := range records {
		study, ok := upstream[record.StudyUID]
		if !ok {
			continue
		}

		patientName := record.PatientName
		if study.patientName != "" {
			patientName = &study.patientName
		}

		now := time.Now().UTC()
		uid := record.StudyUID
		sent := true
		created, err := s.store.Workflow().CreateIfAbsent(txCtx, model.StudyWorkflow{
			StudyID:             study.id,
			StudyInstanceUID:    &uid,
			PatientName:         patientName,
			StudyDescription:    record.StudyDescription,
			Mercure:             model.StageOutcome{SentAt: record.ReceivedTime, Success: &sent},
			AIResultsReceived:   true,
			AIResultsReceivedAt: record.LastTaskTime,
			CreatedAt:           now,
			UpdatedAt:           now,
		})
		if err != nil {
			_, _ = store.Rollback(txCtx)
			return nil, err
		}
		if !created {
			continue
		}

		log.Infow("recovered workflow", "study_id", study.id, "study_uid", uid)
		result.Studies = append(result.Studies, SyncedStudy{
			StudyID:     study.id,
			StudyUID:    uid,
			PatientName: patientName,
			SyncedAt:    now,
		})
	}

	if _, err := store.Commit(txCtx); err != nil {
		return nil, err
	}
	result.Synced = len(result.Studies)

	if result.Synced > 0 {
		ids := make([]string, 0, result.Synced)
		for _, st := range result.Studies {
			ids = append(ids, st.StudyID)
		}
		s.publisher.Publish(ctx, events.StudiesSyncedKind, events.StudiesSyncedEvent{Synced: result.Synced, StudyIDs: ids})
	}

	log.Infof("synced %d studies", result.Synced)
	return result, nil
}

// upstreamStudies maps StudyInstanceUID to the upstream study. Studies that cannot be read
// are skipped; failing to list the archive aborts the sync.
func (s *SyncService) upstreamStudies(ctx context.Context) (map[string]upstreamStudy, error) {
	ids, err := s.catalog.ListStudies(ctx)
	if err != nil {
		return nil, NewErrUpstreamUnavailable(err)
	}

	studies := make(map[string]upstreamStudy, len(ids))
	for _, id := range ids {
		study, err := s.catalog.GetStudy(ctx, id)
		if err != nil {
			zap.S().Named("sync_service").Warnw("failed to read upstream study", "study_id", id, "error", err)
			continue
		}
		uid := study.MainDicomTags.StudyInstanceUID
		if uid == "" {
			continue
		}
		studies[uid] = upstreamStudy{id: id, patientName: study.PatientMainDicomTags.PatientName}
	}
	return studies, nil
}
