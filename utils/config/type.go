package config

// InputPath 指定输入数据来源的配置（MongoDB、文件系统）
// 功能：定义数据输入路径的配置结构，支持MongoDB集合与本地文件两种数据源
// 说明：File/Files优先级高于MongoDB，文件格式由扩展名决定（.yaml/.yml/.geojson/.json）
type InputPath struct {
	DB    string   `yaml:"db,omitempty"`    // 数据库名
	Col   string   `yaml:"col,omitempty"`   // 集合名
	File  string   `yaml:"file,omitempty"`  // 文件路径（优先级高于MongoDB）
	Files []string `yaml:"files,omitempty"` // 文件路径列表（优先级高于MongoDB）
}

// GetDb 获取数据库名
func (p InputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p InputPath) GetColl() string {
	return p.Col
}

// IsFile 是否从文件加载
func (p InputPath) IsFile() bool {
	return p.File != "" || len(p.Files) > 0
}

// AllFiles 获取所有文件路径（File在前，Files在后）
func (p InputPath) AllFiles() []string {
	files := make([]string, 0, len(p.Files)+1)
	if p.File != "" {
		files = append(files, p.File)
	}
	return append(files, p.Files...)
}

// SyntheticDemand 合成停车需求的配置项
// 功能：在未提供需求数据时，按随机种子在已加载的停车设施上生成停车活动
// 说明：每辆车生成一次停车活动，到达时间在[Start, End)内均匀分布，停留时长在[MinDuration, MaxDuration)内均匀分布
type SyntheticDemand struct {
	Vehicles    int     `yaml:"vehicles"`     // 车辆数
	Seed        uint64  `yaml:"seed"`         // 随机种子
	Start       float64 `yaml:"start"`        // 最早到达时间（秒）
	End         float64 `yaml:"end"`          // 最晚到达时间（秒）
	MinDuration float64 `yaml:"min_duration"` // 最短停车时长（秒）
	MaxDuration float64 `yaml:"max_duration"` // 最长停车时长（秒）
	LinkRatio   float64 `yaml:"link_ratio"`   // 按路段（而非指定设施）请求停车的比例
}

// Input 指定模拟器所有输入数据的配置项
type Input struct {
	URI       string           `yaml:"uri,omitempty"`       // MongoDB连接字符串
	Facility  InputPath        `yaml:"facility"`            // 停车设施
	Demand    *InputPath       `yaml:"demand,omitempty"`    // 停车需求
	Synthetic *SyntheticDemand `yaml:"synthetic,omitempty"` // 合成停车需求（Demand为空时生效）
}

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔
}

// Parking 停车管理配置
type Parking struct {
	// 人口抽样比例，(0, 1]，一个模拟车辆代表floor(1/SampleSize)个真实车辆
	SampleSize float64 `yaml:"sample_size"`
}

// Control 模拟器控制配置
type Control struct {
	Step    ControlStep `yaml:"step"`
	Parking Parking     `yaml:"parking"`
}

// Output 输出配置
// 功能：定义统计快照的输出目录、快照时刻与监控地址
type Output struct {
	Dir         string `yaml:"dir,omitempty"`          // 统计输出目录，为空则不输出文件
	Schedule    string `yaml:"schedule,omitempty"`     // 统计快照时刻（模拟时间上的cron表达式），为空则只输出最终统计
	MetricsAddr string `yaml:"metrics_addr,omitempty"` // HTTP监控地址（/metrics、/statistics），为空则不启动
}

// Config YAML配置文件的根结构
type Config struct {
	Input   Input   `yaml:"input"`            // 输入
	Control Control `yaml:"control"`          // 模拟过程控制
	Output  Output  `yaml:"output,omitempty"` // 输出
}
