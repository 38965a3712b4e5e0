package repository

import (
	"time"

	"github.com/wfunc/usb-bench/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BoardInfoRepository 目标板信息仓库
type BoardInfoRepository struct {
	db *gorm.DB
}

// NewBoardInfoRepository 创建目标板信息仓库
func NewBoardInfoRepository(db *gorm.DB) *BoardInfoRepository {
	return &BoardInfoRepository{
		db: db,
	}
}

// Upsert 按角色登记或更新目标板
func (r *BoardInfoRepository) Upsert(info *models.BoardInfo) error {
	info.LastSeenAt = time.Now()
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "role"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"chip", "port", "baud_rate", "connected", "last_seen_at", "updated_at",
		}),
	}).Create(info).Error
}

// GetByRole 根据角色获取目标板
func (r *BoardInfoRepository) GetByRole(role string) (*models.BoardInfo, error) {
	var info models.BoardInfo
	err := r.db.Where("role = ?", role).First(&info).Error
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// List 获取全部登记的目标板
func (r *BoardInfoRepository) List() ([]*models.BoardInfo, error) {
	var infos []*models.BoardInfo
	err := r.db.Order("role ASC").Find(&infos).Error
	return infos, err
}

// SetConnected 更新连接状态
func (r *BoardInfoRepository) SetConnected(role string, connected bool) error {
	return r.db.Model(&models.BoardInfo{}).
		Where("role = ?", role).
		Updates(map[string]interface{}{
			"connected":    connected,
			"last_seen_at": time.Now(),
		}).Error
}
