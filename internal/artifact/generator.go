package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/seikokai/incident-workflow/internal/models"
)

const ledgerFilename = "incident_ledger.xlsx"

const ledgerSheet = "reports"

var ledgerHeaders = []string{
	"報告ID", "発生日時", "報告者", "職種", "影響度レベル", "発生場所",
	"内容分類", "状況詳細", "今後の対策", "ステータス",
	"承認者1", "承認日時1", "承認者2", "承認日時2", "管理者コメント",
}

// DirResolver resolves an approver's preferred artifact destination.
// An empty directory means no preference.
type DirResolver interface {
	ArtifactDir(ctx context.Context, username string) (string, error)
}

// ReportGenerator renders approved incident reports into a one-page PDF
// and appends them to a cumulative ledger workbook in the same directory.
type ReportGenerator struct {
	resolver   DirResolver
	defaultDir string
	fontPath   string
	logger     *zap.Logger
	now        func() time.Time
}

// NewReportGenerator creates a report generator. fontPath points at a
// UTF-8 TTF used for Japanese text; when empty the built-in core font is
// used and non-latin characters will not render.
func NewReportGenerator(resolver DirResolver, defaultDir, fontPath string, logger *zap.Logger) *ReportGenerator {
	return &ReportGenerator{
		resolver:   resolver,
		defaultDir: defaultDir,
		fontPath:   fontPath,
		logger:     logger,
		now:        time.Now,
	}
}

// Generate renders the report PDF into the acting approver's artifact
// directory and appends a ledger row next to it. Returns the PDF path.
// Repeated generation produces additional timestamped copies.
func (g *ReportGenerator) Generate(ctx context.Context, report *models.Report, actingApprover string) (string, error) {
	dir, err := g.destinationDir(ctx, actingApprover)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	filename := fmt.Sprintf("incident_report_%d_%s.pdf", report.ID, g.now().Format("20060102_150405"))
	pdfPath := filepath.Join(dir, filename)

	if err := g.renderPDF(report, pdfPath); err != nil {
		return "", err
	}

	// The ledger is best effort: a locked workbook must not fail the
	// report PDF that was already written.
	if err := g.appendLedgerRow(report, filepath.Join(dir, ledgerFilename)); err != nil {
		g.logger.Warn("Failed to append ledger row",
			zap.Int64("report_id", report.ID),
			zap.Error(err))
	}

	g.logger.Info("Report artifacts generated",
		zap.Int64("report_id", report.ID),
		zap.String("path", pdfPath))
	return pdfPath, nil
}

func (g *ReportGenerator) destinationDir(ctx context.Context, actingApprover string) (string, error) {
	if g.resolver != nil && actingApprover != "" {
		dir, err := g.resolver.ArtifactDir(ctx, actingApprover)
		if err != nil {
			return "", fmt.Errorf("resolve artifact dir: %w", err)
		}
		if dir != "" {
			return dir, nil
		}
	}
	return g.defaultDir, nil
}

func (g *ReportGenerator) renderPDF(report *models.Report, path string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	font := "Arial"
	if g.fontPath != "" {
		pdf.AddUTF8Font("report", "", g.fontPath)
		pdf.AddUTF8Font("report", "B", g.fontPath)
		font = "report"
	}

	pdf.SetFont(font, "B", 16)
	pdf.CellFormat(0, 10, "インシデント報告書", "", 1, "C", false, 0, "")
	pdf.SetFont(font, "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("報告ID: %d", report.ID), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	section := func(title string) {
		pdf.SetFont(font, "B", 12)
		pdf.SetFillColor(230, 238, 245)
		pdf.CellFormat(0, 8, title, "1", 1, "L", true, 0, "")
		pdf.SetFont(font, "", 10)
	}
	item := func(label, value string) {
		if value == "" {
			value = "-"
		}
		pdf.SetFont(font, "B", 10)
		pdf.CellFormat(45, 7, label, "1", 0, "L", false, 0, "")
		pdf.SetFont(font, "", 10)
		pdf.CellFormat(0, 7, value, "1", 1, "L", false, 0, "")
	}
	block := func(label, value string) {
		if value == "" {
			value = "-"
		}
		pdf.SetFont(font, "B", 10)
		pdf.CellFormat(0, 7, label, "1", 1, "L", false, 0, "")
		pdf.SetFont(font, "", 10)
		pdf.MultiCell(0, 6, value, "1", "L", false)
	}
	formatTime := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02 15:04")
	}

	section("概要")
	item("影響度レベル", report.Level)
	item("発生日時", report.OccurrenceDatetime.Format("2006-01-02 15:04"))
	item("報告者", report.ReporterName)

	section("患者情報")
	item("患者ID", report.PatientID)
	item("患者氏名", report.PatientName)
	item("性別", report.PatientGender)
	if report.PatientAge > 0 {
		item("年齢", fmt.Sprintf("%d 歳", report.PatientAge))
	} else {
		item("年齢", "")
	}
	item("認知症の有無", report.DementiaStatus)

	section("インシデント分析")
	item("発生場所", report.Location)
	item("内容分類", report.ContentCategory)
	block("インシデント内容", report.ContentDetails)
	block("状況詳細", report.Situation)
	block("今後の対策", report.Countermeasure)

	section("報告者情報と経緯")
	item("職種", report.JobType)
	item("経験年数", report.YearsOfExperience)
	item("入職年数", report.YearsSinceJoining)
	item("事故との関連性", report.ConnectionWithAccident)
	item("報告日時", report.CreatedAt.Format("2006-01-02 15:04"))

	section("状態変化と説明")
	item("患者の状態変化", report.PatientStatusChange)
	item("患者への説明", report.PatientExplanation)
	item("家族への説明", report.FamilyExplanation)

	section("原因分析とマニュアル")
	block("発生原因", report.CauseDetails)
	item("マニュアル関連", report.ManualRelation)

	section("承認ワークフロー")
	item("ステータス", report.Status)
	item("承認者1", report.Approver1)
	item("承認日時1", formatTime(report.ApprovedAt1))
	item("承認者2", report.Approver2)
	item("承認日時2", formatTime(report.ApprovedAt2))
	block("管理者フィードバック", report.ManagerComments)

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// appendLedgerRow appends the report to the cumulative workbook, creating
// it with a header row when absent.
func (g *ReportGenerator) appendLedgerRow(report *models.Report, path string) error {
	var f *excelize.File
	if _, err := os.Stat(path); err == nil {
		f, err = excelize.OpenFile(path)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
	} else {
		f = excelize.NewFile()
		index, err := f.NewSheet(ledgerSheet)
		if err != nil {
			return fmt.Errorf("create ledger sheet: %w", err)
		}
		f.SetActiveSheet(index)
		_ = f.DeleteSheet("Sheet1")
		for i, header := range ledgerHeaders {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			if err := f.SetCellValue(ledgerSheet, cell, header); err != nil {
				return fmt.Errorf("write ledger header: %w", err)
			}
		}
	}
	defer f.Close()

	rows, err := f.GetRows(ledgerSheet)
	if err != nil {
		return fmt.Errorf("read ledger rows: %w", err)
	}
	rowIndex := len(rows) + 1

	formatTime := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02 15:04")
	}
	values := []interface{}{
		report.ID,
		report.OccurrenceDatetime.Format("2006-01-02 15:04"),
		report.ReporterName,
		report.JobType,
		report.Level,
		report.Location,
		report.ContentCategory,
		report.Situation,
		report.Countermeasure,
		report.Status,
		report.Approver1,
		formatTime(report.ApprovedAt1),
		report.Approver2,
		formatTime(report.ApprovedAt2),
		report.ManagerComments,
	}
	for i, value := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, rowIndex)
		if err := f.SetCellValue(ledgerSheet, cell, value); err != nil {
			return fmt.Errorf("write ledger cell: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}
