package api

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"chefia/internal/apperrors"
	"chefia/internal/backup"
	"chefia/internal/ingest"
	"chefia/internal/menu"
	"chefia/internal/models"
	"chefia/internal/observability"
)

const (
	csvContentType  = "text/csv; charset=utf-8"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	backupBaseName  = "dados_chefia"
)

func (s *Server) limitBody(c *gin.Context) {
	if limit := s.cfg.Server.MaxUploadBytes; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
}

// handleUpload normalizes a sales and a cost export, merges them and, when
// anything was classified, makes the merged items the session dataset.
func (s *Server) handleUpload(c *gin.Context) {
	s.limitBody(c)
	salesFile, err := c.FormFile("sales")
	if err != nil {
		s.fail(c, apperrors.Validation("multipart field 'sales' is required"))
		return
	}
	costsFile, err := c.FormFile("costs")
	if err != nil {
		s.fail(c, apperrors.Validation("multipart field 'costs' is required"))
		return
	}

	var (
		sales []models.SalesRecord
		costs []models.CostRecord
		stats ingest.CostStats
	)
	var g errgroup.Group
	g.Go(func() error {
		return readUpload(salesFile, func(f multipart.File) (err error) {
			if sales, err = ingest.ParseSales(f); err != nil {
				s.monitor.RecordIngestFailure("sales")
				return fmt.Errorf("sales file: %w", err)
			}
			return nil
		})
	})
	g.Go(func() error {
		return readUpload(costsFile, func(f multipart.File) (err error) {
			if costs, stats, err = ingest.ParseCosts(f); err != nil {
				s.monitor.RecordIngestFailure("costs")
				return fmt.Errorf("costs file: %w", err)
			}
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		s.fail(c, err)
		return
	}

	a := menu.Merge(sales, costs)
	s.monitor.RecordAnalysis("upload", a)
	s.monitor.RecordDroppedCostRows(stats.DroppedRows)

	id := sessionID(c)
	logger := observability.FromContext(c.Request.Context(), s.logger)
	logger.Info("menu merged",
		"outcome", a.Outcome,
		"items", len(a.Items),
		"sales_only", len(a.Report.SalesOnly),
		"cost_only", len(a.Report.CostOnly),
		"zero_popularity", len(a.Report.ZeroPopularity),
		"dropped_cost_rows", stats.DroppedRows,
	)

	stored := false
	if a.Outcome == menu.OutcomeOK {
		if err := s.sessions.ReplaceDataset(id, a); err != nil {
			s.fail(c, err)
			return
		}
		stored = true
	}

	view := viewOf(a)
	if stats.DroppedRows > 0 {
		view.Warnings = append(view.Warnings, fmt.Sprintf("%d cost rows were dropped for an unreadable value", stats.DroppedRows))
	}
	c.JSON(http.StatusOK, gin.H{
		"analysis":          view,
		"dropped_cost_rows": stats.DroppedRows,
		"stored":            stored,
	})
}

func readUpload(fh *multipart.FileHeader, parse func(multipart.File) error) error {
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return parse(f)
}

func (s *Server) handleBackupCSV(c *gin.Context) {
	a, ok := s.dashboardAnalysis(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := backup.WriteCSV(&buf, a.Items); err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+backupBaseName+`.csv"`)
	c.Data(http.StatusOK, csvContentType, buf.Bytes())
}

func (s *Server) handleBackupXLSX(c *gin.Context) {
	a, ok := s.dashboardAnalysis(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := backup.WriteXLSX(&buf, a); err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+backupBaseName+`.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (s *Server) handleBackupImport(c *gin.Context) {
	s.limitBody(c)
	fh, err := c.FormFile("file")
	if err != nil {
		s.fail(c, apperrors.Validation("multipart field 'file' is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.fail(c, err)
		return
	}
	defer f.Close()

	id := sessionID(c)
	res, err := s.sessions.ImportBackup(id, fh.Filename, fh.Size, f)
	if err != nil {
		s.fail(c, err)
		return
	}
	a, err := s.sessions.Analysis(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"import": res, "analysis": viewOf(a)})
}

// handleBackupArchive writes the CSV and XLSX backups to the object store.
func (s *Server) handleBackupArchive(c *gin.Context) {
	a, ok := s.dashboardAnalysis(c)
	if !ok {
		return
	}
	if len(a.Items) == 0 {
		s.fail(c, apperrors.Validation("the dataset is empty"))
		return
	}

	var csvBuf, xlsxBuf bytes.Buffer
	if err := backup.WriteCSV(&csvBuf, a.Items); err != nil {
		s.fail(c, err)
		return
	}
	if err := backup.WriteXLSX(&xlsxBuf, a); err != nil {
		s.fail(c, err)
		return
	}

	prefix := fmt.Sprintf("%s/%s_%s", sessionID(c), backupBaseName, time.Now().UTC().Format("20060102T150405Z"))
	ctx := c.Request.Context()
	csvLoc, err := s.archive.Put(ctx, prefix+".csv", csvBuf.Bytes(), csvContentType)
	if err != nil {
		s.fail(c, apperrors.Unavailable(err, "backup archive unavailable"))
		return
	}
	xlsxLoc, err := s.archive.Put(ctx, prefix+".xlsx", xlsxBuf.Bytes(), xlsxContentType)
	if err != nil {
		s.fail(c, apperrors.Unavailable(err, "backup archive unavailable"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"csv": csvLoc, "xlsx": xlsxLoc})
}
