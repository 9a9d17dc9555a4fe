package input

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tsinghua-fib-lab/agentsociety-parking/entity/facility"
	"github.com/tsinghua-fib-lab/agentsociety-parking/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"gopkg.in/yaml.v2"
)

// Input 输入数据
// 功能：存储模拟所需的停车设施与停车需求，支持从文件或数据库加载
type Input struct {
	Facilities []facility.Record
	Activities []ParkingActivity
}

// Init 加载数据
// 功能：根据配置加载停车设施与停车需求
// 参数：config-配置对象
// 返回：加载完成的输入数据
// 算法说明：
// 1. 如果配置了MongoDB则建立连接
// 2. 停车设施：文件（YAML/GeoJSON）优先，否则从MongoDB加载
// 3. 停车需求：文件（YAML）优先，否则从MongoDB加载；未配置时按synthetic配置合成
// 4. 非法的停车活动被丢弃并记录警告
// 说明：加载失败直接panic，发生在第一个模拟步之前
func Init(config config.Config) (res *Input) {
	var client *mongo.Client
	if config.Input.URI != "" {
		client = mongoutil.NewClient(config.Input.URI)
		defer client.Disconnect(context.Background())
	}
	res = &Input{}

	var err error
	if config.Input.Facility.IsFile() {
		res.Facilities, err = LoadFacilityFiles(config.Input.Facility.AllFiles())
	} else {
		res.Facilities, err = mongoLoad[facility.Record](client, config.Input.Facility)
	}
	if err != nil {
		log.Panicf("failed to load parking facilities: %v", err)
	}
	log.Infof("load %d parking facility records", len(res.Facilities))

	var activities []ParkingActivity
	switch {
	case config.Input.Demand != nil && config.Input.Demand.IsFile():
		activities, err = LoadActivityFiles(config.Input.Demand.AllFiles())
	case config.Input.Demand != nil:
		activities, err = mongoLoad[ParkingActivity](client, *config.Input.Demand)
	case config.Input.Synthetic != nil:
		activities = Synthesize(*config.Input.Synthetic, res.Facilities)
	default:
		log.Warn("no parking demand configured, the engine will only serve RPC requests")
	}
	if err != nil {
		log.Panicf("failed to load parking demand: %v", err)
	}
	res.Activities = FilterValid(activities)
	log.Infof("load %d parking activities", len(res.Activities))
	return
}

// LoadFacilityFiles 从文件加载停车设施，格式由扩展名决定
// 说明：.yaml/.yml为设施记录列表，.geojson/.json为以点要素表示设施的FeatureCollection
func LoadFacilityFiles(files []string) ([]facility.Record, error) {
	records := make([]facility.Record, 0)
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		var rs []facility.Record
		switch ext := strings.ToLower(filepath.Ext(file)); ext {
		case ".yaml", ".yml":
			err = yaml.UnmarshalStrict(data, &rs)
		case ".geojson", ".json":
			rs, err = DecodeFacilityGeoJSON(data)
		default:
			err = fmt.Errorf("unsupported file extension %q", ext)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		records = append(records, rs...)
	}
	return records, nil
}

// DecodeFacilityGeoJSON 解析GeoJSON格式的停车设施
// 说明：每个要素必须是点，属性包括id（缺省时使用要素ID）、link、type、capacity与可选的max_parking_duration
func DecodeFacilityGeoJSON(data []byte) (records []facility.Record, err error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}
	// Properties.Must*在属性缺失或类型错误时panic
	defer func() {
		if r := recover(); r != nil {
			records, err = nil, fmt.Errorf("bad facility properties: %v", r)
		}
	}()
	records = make([]facility.Record, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f.Geometry == nil {
			return nil, fmt.Errorf("feature #%d has no geometry", i)
		}
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("feature #%d: geometry %s is not a point", i, f.Geometry.GeoJSONType())
		}
		id := f.Properties.MustString("id", "")
		if id == "" && f.ID != nil {
			id = fmt.Sprint(f.ID)
		}
		records = append(records, facility.Record{
			ID:                 id,
			X:                  p.X(),
			Y:                  p.Y(),
			LinkID:             f.Properties.MustString("link"),
			Type:               f.Properties.MustString("type"),
			MaxParkingDuration: f.Properties.MustFloat64("max_parking_duration", 0),
			Capacity:           f.Properties.MustInt("capacity"),
		})
	}
	return records, nil
}

// LoadActivityFiles 从YAML文件加载停车活动
func LoadActivityFiles(files []string) ([]ParkingActivity, error) {
	activities := make([]ParkingActivity, 0)
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		var as []ParkingActivity
		if err := yaml.UnmarshalStrict(data, &as); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		activities = append(activities, as...)
	}
	return activities, nil
}

// mongoLoad 从MongoDB集合中加载全部文档
func mongoLoad[T any](client *mongo.Client, path config.InputPath) ([]T, error) {
	if client == nil {
		return nil, fmt.Errorf("collection %s.%s requires input.uri", path.DB, path.Col)
	}
	ctx := context.Background()
	log.Infof("start fetching from %s.%s", path.DB, path.Col)
	cursor, err := client.Database(path.GetDb()).Collection(path.GetColl()).Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	res := make([]T, 0)
	if err := cursor.All(ctx, &res); err != nil {
		return nil, err
	}
	log.Infof("finish fetching %d documents from %s.%s", len(res), path.DB, path.Col)
	return res, nil
}
