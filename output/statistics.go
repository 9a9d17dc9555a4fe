package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tsinghua-fib-lab/agentsociety-parking/entity"
)

// SnapshotWriter 统计快照文件输出
// 功能：把停车设施占用统计按行写入dir/statistics.<name>.txt
type SnapshotWriter struct {
	dir string
}

// NewSnapshotWriter 创建快照输出，目录不存在时自动创建
func NewSnapshotWriter(dir string) (*SnapshotWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &SnapshotWriter{dir: dir}, nil
}

// Path 快照文件路径
func (w *SnapshotWriter) Path(name string) string {
	return filepath.Join(w.dir, "statistics."+name+".txt")
}

// Write 写出一次快照
// 参数：name-快照名（例如08-15-00、final），pm-停车管理器
func (w *SnapshotWriter) Write(name string, pm entity.IParkingManager) (err error) {
	path := w.Path(name)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err = pm.WriteStatistics(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Debugf("statistics written to %s", path)
	return nil
}
