// kimichat/sources/psql/dao/dao.blob.go
package dao

import (
	"context"
	"errors"

	"kimichat/kimichat/sources/psql/models"

	"gorm.io/gorm"
)

// BlobDAO implements blob.Storage on top of a gorm table.
type BlobDAO struct {
	DB *gorm.DB
}

func NewBlobDAO(db *gorm.DB) *BlobDAO {
	return &BlobDAO{DB: db}
}

func (dao *BlobDAO) GetItem(ctx context.Context, key string) (string, bool, error) {
	var b models.Blob
	err := dao.DB.WithContext(ctx).Where("blob_key = ?", key).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return b.Value, true, nil
}

// SetItem creates or updates the blob for key.
func (dao *BlobDAO) SetItem(ctx context.Context, key, value string) error {
	var b models.Blob
	err := dao.DB.WithContext(ctx).Where("blob_key = ?", key).First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dao.DB.WithContext(ctx).Create(&models.Blob{Key: key, Value: value}).Error
		}
		return err
	}
	b.Value = value
	return dao.DB.WithContext(ctx).Save(&b).Error
}

func (dao *BlobDAO) RemoveItem(ctx context.Context, key string) error {
	return dao.DB.WithContext(ctx).Where("blob_key = ?", key).Delete(&models.Blob{}).Error
}
