// Package pipecache persists the driver's pipeline cache between runs.
package pipecache

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/v3/common"

	"github.com/vkngwrapper/menagerie/internal/gpu"
	"github.com/vkngwrapper/menagerie/internal/logging"
)

const (
	// HeaderSize is the length of a version one header.
	HeaderSize = 32
	// HeaderVersionOne is VK_PIPELINE_CACHE_HEADER_VERSION_ONE.
	HeaderVersionOne = 1
)

// Header is the prefix every driver writes at the start of its cache data.
type Header struct {
	Length   uint32
	Version  uint32
	VendorID uint32
	DeviceID uint32
	UUID     uuid.UUID
}

// NewHeader describes cache data that a device with props would accept.
func NewHeader(props gpu.DeviceProperties) Header {
	return Header{
		Length:   HeaderSize,
		Version:  HeaderVersionOne,
		VendorID: props.VendorID,
		DeviceID: props.DeviceID,
		UUID:     props.PipelineCacheUUID,
	}
}

func (h Header) Bytes() []byte {
	buf := &bytes.Buffer{}
	// Writes to a bytes.Buffer cannot fail.
	_ = binary.Write(buf, common.ByteOrder, h)
	return buf.Bytes()
}

func ParseHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < HeaderSize {
		return h, errors.Newf("cache data is %d bytes, shorter than its header", len(data))
	}
	if err := binary.Read(bytes.NewReader(data), common.ByteOrder, &h); err != nil {
		return h, errors.Wrap(err, "read cache header")
	}
	return h, nil
}

// Check reports every way h disagrees with the device.
func (h Header) Check(props gpu.DeviceProperties) error {
	var problems []error
	if h.Length < HeaderSize {
		problems = append(problems, errors.Newf("bad header length 0x%x", h.Length))
	}
	if h.Version != HeaderVersionOne {
		problems = append(problems, errors.Newf("unsupported header version 0x%x", h.Version))
	}
	if h.VendorID != props.VendorID {
		problems = append(problems, errors.Newf("vendor ID 0x%x, driver expects 0x%x", h.VendorID, props.VendorID))
	}
	if h.DeviceID != props.DeviceID {
		problems = append(problems, errors.Newf("device ID 0x%x, driver expects 0x%x", h.DeviceID, props.DeviceID))
	}
	if h.UUID != props.PipelineCacheUUID {
		problems = append(problems, errors.Newf("UUID %s, driver expects %s", h.UUID, props.PipelineCacheUUID))
	}
	return errors.Join(problems...)
}

// Read returns cache data from path that the device will accept. A missing file yields
// nil data. A stale or corrupt file is removed so the next save repopulates it.
func Read(path string, props gpu.DeviceProperties) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logging.Logger().Info("pipeline cache miss", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read pipeline cache")
	}

	header, err := ParseHeader(data)
	if err == nil {
		err = header.Check(props)
	}
	if err != nil {
		logging.Logger().Warn("discarding pipeline cache", "path", path, "reason", err)
		// Not important if this fails; the file is rewritten on save.
		_ = os.Remove(path)
		return nil, nil
	}

	logging.Logger().Info("pipeline cache hit", "path", path, "bytes", len(data))
	return data, nil
}

// Write stores data at path, creating its directory.
func Write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create pipeline cache directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "write pipeline cache")
	}
	return nil
}

// Cache is a device pipeline cache backed by a file. An empty path keeps it in memory
// only.
type Cache struct {
	path   string
	handle gpu.PipelineCache
}

// Open creates the device cache seeded with whatever valid data path holds.
func Open(dev gpu.Device, path string) (*Cache, error) {
	var initial []byte
	if path != "" {
		var err error
		initial, err = Read(path, dev.Properties())
		if err != nil {
			return nil, err
		}
	}

	handle, err := dev.NewPipelineCache(initial)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "create pipeline cache"), gpu.ErrDeviceCreation)
	}
	return &Cache{path: path, handle: handle}, nil
}

func (c *Cache) Handle() gpu.PipelineCache {
	return c.handle
}

// Save writes the cache's current contents back to its file.
func (c *Cache) Save() error {
	if c.path == "" || c.handle == nil {
		return nil
	}

	start := hrtime.Now()
	data, err := c.handle.Data()
	if err != nil {
		return errors.Wrap(err, "get pipeline cache data")
	}
	if len(data) == 0 {
		return nil
	}
	if err := Write(c.path, data); err != nil {
		return err
	}

	logging.Logger().Debug("pipeline cache saved", "path", c.path, "bytes", len(data), "elapsed", hrtime.Since(start))
	return nil
}

func (c *Cache) Destroy() {
	if c == nil || c.handle == nil {
		return
	}
	c.handle.Destroy()
	c.handle = nil
}
