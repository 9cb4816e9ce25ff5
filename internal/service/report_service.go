package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/seikokai/incident-workflow/internal/artifact"
	"github.com/seikokai/incident-workflow/internal/models"
	"github.com/seikokai/incident-workflow/internal/repository"
)

var exportHeaders = []string{
	"報告ID", "発生日時", "報告者", "職種", "影響度レベル", "発生場所",
	"内容分類", "インシデント内容", "状況詳細", "今後の対策",
	"ステータス", "承認者1", "承認者2", "管理者コメント",
}

// ReportService provides the read-side surface over submitted reports:
// listing, filtering and CSV export.
type ReportService struct {
	reports  *repository.ReportRepository
	exporter *artifact.CSVExporter
	logger   *zap.Logger
}

// NewReportService creates a new report service
func NewReportService(reports *repository.ReportRepository, logger *zap.Logger) *ReportService {
	return &ReportService{
		reports:  reports,
		exporter: artifact.NewCSVExporter(),
		logger:   logger,
	}
}

// List returns reports matching the filter
func (s *ReportService) List(ctx context.Context, filter repository.Filter) ([]*models.Report, error) {
	return s.reports.List(ctx, filter)
}

// Get returns a single report, nil when it does not exist
func (s *ReportService) Get(ctx context.Context, id int64) (*models.Report, error) {
	return s.reports.GetByID(ctx, id)
}

// ExportCSV renders the filtered report set as CSV bytes.
func (s *ReportService) ExportCSV(ctx context.Context, filter repository.Filter) ([]byte, error) {
	reports, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	data := artifact.Dataset{Headers: exportHeaders}
	for _, r := range reports {
		data.Rows = append(data.Rows, map[string]string{
			"報告ID":     strconv.FormatInt(r.ID, 10),
			"発生日時":     r.OccurrenceDatetime.Format(time.RFC3339),
			"報告者":      r.ReporterName,
			"職種":       r.JobType,
			"影響度レベル":   r.Level,
			"発生場所":     r.Location,
			"内容分類":     r.ContentCategory,
			"インシデント内容": r.ContentDetails,
			"状況詳細":     r.Situation,
			"今後の対策":    r.Countermeasure,
			"ステータス":    r.Status,
			"承認者1":     r.Approver1,
			"承認者2":     r.Approver2,
			"管理者コメント":  r.ManagerComments,
		})
	}

	out, err := s.exporter.Render(data)
	if err != nil {
		s.logger.Error("Failed to render report export", zap.Error(err))
		return nil, fmt.Errorf("render report export: %w", err)
	}
	s.logger.Info("Report export rendered", zap.Int("rows", len(reports)))
	return out, nil
}
