package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/katsuopg/kinton/internal/kinton/engine"
	"github.com/katsuopg/kinton/internal/kinton/entity"
	"github.com/katsuopg/kinton/internal/kinton/repository"
	"github.com/xuri/excelize/v2"
)

// ExportService 导出服务：记录列表导出为XLSX。
// 核心引擎之外的薄封装，只消费权限判定的结果。
type ExportService struct {
	appRepo    *repository.AppRepository
	recordRepo *repository.RecordRepository
	permSvc    *PermissionService
}

// NewExportService 创建导出服务
func NewExportService(appRepo *repository.AppRepository, recordRepo *repository.RecordRepository,
	permSvc *PermissionService) *ExportService {
	return &ExportService{appRepo: appRepo, recordRepo: recordRepo, permSvc: permSvc}
}

const exportPageSize = 500

// ExportXLSX 导出应用全部记录。首行为字段标签，之后每行一条记录。
func (s *ExportService) ExportXLSX(ctx context.Context, userID, appCode string) (*excelize.File, error) {
	app, err := s.appRepo.FindByCode(ctx, appCode, false)
	if err != nil {
		return nil, engine.ErrNotFound
	}

	allowed, err := s.permSvc.Authorize(ctx, userID, appCode, entity.CapExport)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, engine.ErrPermissionDenied
	}

	fields, err := s.appRepo.ListFields(ctx, app.ID, true)
	if err != nil {
		return nil, fmt.Errorf("加载字段定义失败: %w", err)
	}

	// 只导出输入类型字段
	var columns []entity.FieldDefinition
	for _, f := range fields {
		if f.Type.IsInput() {
			columns = append(columns, f)
		}
	}

	file := excelize.NewFile()
	sheet := file.GetSheetName(0)

	header := []interface{}{"记录编号"}
	for _, f := range columns {
		header = append(header, f.Label)
	}
	if err := file.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("写入表头失败: %w", err)
	}

	rowIndex := 2
	for page := 1; ; page++ {
		records, _, err := s.recordRepo.ListByApp(ctx, app.ID, page, exportPageSize)
		if err != nil {
			return nil, fmt.Errorf("加载记录失败: %w", err)
		}
		if len(records) == 0 {
			break
		}

		for _, record := range records {
			row := []interface{}{record.RecordNumber}
			for _, f := range columns {
				row = append(row, cellValue(record.Data[f.Code]))
			}
			cell, _ := excelize.CoordinatesToCellName(1, rowIndex)
			if err := file.SetSheetRow(sheet, cell, &row); err != nil {
				return nil, fmt.Errorf("写入记录行失败: %w", err)
			}
			rowIndex++
		}
		if len(records) < exportPageSize {
			break
		}
	}

	return file, nil
}

// cellValue 文档值转单元格值：数组拼接为逗号分隔，其余原样
func cellValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return ""
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, e := range val {
			parts = append(parts, fmt.Sprintf("%v", e))
		}
		return strings.Join(parts, ", ")
	default:
		return val
	}
}
