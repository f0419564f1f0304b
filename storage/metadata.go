package storage

import (
	"os"
	"path/filepath"

	"github.com/Hooolee/novel-splitter/apperr"
	"github.com/Hooolee/novel-splitter/model"
	"github.com/Hooolee/novel-splitter/utils"
)

// WriteMetadata stores meta as info.json in novelDir. Keys added by earlier
// UpdateMetadata calls survive; the five scraped fields are overwritten.
func WriteMetadata(novelDir string, meta *model.NovelMetadata) error {
	if meta.Tags == nil {
		meta.Tags = []string{}
	}
	data, err := utils.JSON.Marshal(meta)
	if err != nil {
		return apperr.Wrap(apperr.KindFormat, "failed to marshal metadata", err)
	}
	var fresh map[string]interface{}
	if err := utils.Unmarshal(data, &fresh); err != nil {
		return apperr.Wrap(apperr.KindFormat, "failed to marshal metadata", err)
	}

	infoPath := filepath.Join(novelDir, InfoFile)
	current := map[string]interface{}{}
	if existing, err := os.ReadFile(infoPath); err == nil {
		if err := utils.Unmarshal(existing, &current); err != nil || current == nil {
			current = map[string]interface{}{}
		}
	}
	for k, v := range fresh {
		current[k] = v
	}
	return writeInfo(infoPath, current)
}

// ReadMetadata loads the scraped fields of info.json.
func ReadMetadata(novelDir string) (*model.NovelMetadata, error) {
	data, err := os.ReadFile(filepath.Join(novelDir, InfoFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.NotFound("info.json not found")
		}
		return nil, apperr.Filesystem("failed to read info.json", err)
	}
	meta := &model.NovelMetadata{}
	if err := utils.Unmarshal(data, meta); err != nil {
		return nil, apperr.Wrap(apperr.KindFormat, "failed to parse info.json", err)
	}
	return meta, nil
}

// UpdateMetadata overlays patch onto <dir>/<novel>/info.json, top level only.
func UpdateMetadata(dir, novel string, patch map[string]interface{}) error {
	novelDir, err := within(dir, novel)
	if err != nil {
		return err
	}
	infoPath := filepath.Join(novelDir, InfoFile)
	data, err := os.ReadFile(infoPath)
	if err != nil {
		if os.IsNotExist(err) {
			return apperr.NotFound("info.json not found")
		}
		return apperr.Filesystem("failed to read info.json", err)
	}
	var current map[string]interface{}
	if err := utils.Unmarshal(data, &current); err != nil || current == nil {
		return apperr.Format("info.json is not a JSON object")
	}
	for k, v := range patch {
		current[k] = v
	}
	return writeInfo(infoPath, current)
}

func writeInfo(path string, obj map[string]interface{}) error {
	out, err := utils.MarshalIndent(obj)
	if err != nil {
		return apperr.Wrap(apperr.KindFormat, "failed to marshal info.json", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return apperr.Filesystem("failed to write info.json", err)
	}
	return nil
}
