package parking

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"git.fiblab.net/sim/syncer/v3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-parking/entity"
	"github.com/tsinghua-fib-lab/agentsociety-parking/utils"
	"github.com/tsinghua-fib-lab/agentsociety-parking/utils/codec"
)

// Register 将停车查询服务注册到Sidecar
func (m *ParkingManager) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(ParkingServiceName, m.NewHandler)
}

// NewHandler 创建停车查询服务的HTTP处理器
// 参数：opts-connect处理器选项，JSON编解码器总是追加在最后
// 返回：路由前缀与处理器
func (m *ParkingManager) NewHandler(opts ...connect.HandlerOption) (pattern string, handler http.Handler) {
	opts = append(opts, connect.WithCodec(codec.JSON{}))
	mux := http.NewServeMux()
	mux.Handle(GetVehicleParkingProcedure, connect.NewUnaryHandler(GetVehicleParkingProcedure, m.GetVehicleParking, opts...))
	mux.Handle(GetStatisticsProcedure, connect.NewUnaryHandler(GetStatisticsProcedure, m.GetStatistics, opts...))
	mux.Handle(GetLinkParkingProcedure, connect.NewUnaryHandler(GetLinkParkingProcedure, m.GetLinkParking, opts...))
	mux.Handle(FindNearestAvailableProcedure, connect.NewUnaryHandler(FindNearestAvailableProcedure, m.FindNearestAvailable, opts...))
	return "/" + ParkingServiceName + "/", mux
}

// GetVehicleParking 查询车辆的停车状态
func (m *ParkingManager) GetVehicleParking(ctx context.Context, in *connect.Request[GetVehicleParkingRequest]) (*connect.Response[GetVehicleParkingResponse], error) {
	req := in.Msg
	if req.VehicleID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("empty vehicle id"))
	}
	res := &GetVehicleParkingResponse{Reserved: m.HasReservation(req.VehicleID)}
	if loc, ok := m.VehicleLocation(req.VehicleID); ok {
		res.Parked = true
		res.Outside = loc.Outside()
		res.LinkID = loc.LinkID
		res.Facilities = loc.Facilities
	}
	return connect.NewResponse(res), nil
}

// GetStatistics 查询设施占用统计，可按设施ID筛选
func (m *ParkingManager) GetStatistics(ctx context.Context, in *connect.Request[GetStatisticsRequest]) (*connect.Response[GetStatisticsResponse], error) {
	req := in.Msg
	stats, failed := utils.Find(m.FacilityStatistics(), func(s entity.FacilityStatistics) string {
		return s.FacilityID
	}, req.FacilityIDs)
	if len(failed) > 0 {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("no parking facilities %v", failed))
	}
	return connect.NewResponse(&GetStatisticsResponse{
		Facilities:    stats,
		TotalCapacity: m.catalog.TotalCapacity(),
		FreeSpaces:    m.FreeSpaces(),
	}), nil
}

// GetLinkParking 查询路段上的车位情况
func (m *ParkingManager) GetLinkParking(ctx context.Context, in *connect.Request[GetLinkParkingRequest]) (*connect.Response[GetLinkParkingResponse], error) {
	req := in.Msg
	if !m.HasFacilityAtLink(req.LinkID) {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("no parking facility at link %q", req.LinkID))
	}
	stats := lo.Filter(m.FacilityStatistics(), func(s entity.FacilityStatistics, _ int) bool {
		return s.LinkID == req.LinkID
	})
	return connect.NewResponse(&GetLinkParkingResponse{
		Capacity:   m.LinkCapacity(req.LinkID),
		FreeSpaces: m.LinkFreeSpaces(req.LinkID),
		Facilities: stats,
	}), nil
}

// FindNearestAvailable 查询距离给定坐标最近的有空位设施
func (m *ParkingManager) FindNearestAvailable(ctx context.Context, in *connect.Request[FindNearestAvailableRequest]) (*connect.Response[FindNearestAvailableResponse], error) {
	p := orb.Point{in.Msg.X, in.Msg.Y}
	f, free, ok := m.NearestAvailable(p)
	if !ok {
		return connect.NewResponse(&FindNearestAvailableResponse{}), nil
	}
	return connect.NewResponse(&FindNearestAvailableResponse{
		Found:      true,
		FacilityID: f.ID(),
		LinkID:     f.LinkID(),
		X:          f.Coord().X(),
		Y:          f.Coord().Y(),
		Distance:   planar.Distance(p, f.Coord()),
		FreeSpaces: free,
	}), nil
}

// Client 停车查询服务客户端
type Client struct {
	getVehicleParking    *connect.Client[GetVehicleParkingRequest, GetVehicleParkingResponse]
	getStatistics        *connect.Client[GetStatisticsRequest, GetStatisticsResponse]
	getLinkParking       *connect.Client[GetLinkParkingRequest, GetLinkParkingResponse]
	findNearestAvailable *connect.Client[FindNearestAvailableRequest, FindNearestAvailableResponse]
}

// NewClient 创建停车查询服务客户端
// 参数：httpClient-HTTP客户端，baseURL-服务地址，例如http://localhost:51102
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	opts = append(opts, connect.WithCodec(codec.JSON{}))
	return &Client{
		getVehicleParking:    connect.NewClient[GetVehicleParkingRequest, GetVehicleParkingResponse](httpClient, baseURL+GetVehicleParkingProcedure, opts...),
		getStatistics:        connect.NewClient[GetStatisticsRequest, GetStatisticsResponse](httpClient, baseURL+GetStatisticsProcedure, opts...),
		getLinkParking:       connect.NewClient[GetLinkParkingRequest, GetLinkParkingResponse](httpClient, baseURL+GetLinkParkingProcedure, opts...),
		findNearestAvailable: connect.NewClient[FindNearestAvailableRequest, FindNearestAvailableResponse](httpClient, baseURL+FindNearestAvailableProcedure, opts...),
	}
}

func (c *Client) GetVehicleParking(ctx context.Context, req *GetVehicleParkingRequest) (*GetVehicleParkingResponse, error) {
	res, err := c.getVehicleParking.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) GetStatistics(ctx context.Context, req *GetStatisticsRequest) (*GetStatisticsResponse, error) {
	res, err := c.getStatistics.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) GetLinkParking(ctx context.Context, req *GetLinkParkingRequest) (*GetLinkParkingResponse, error) {
	res, err := c.getLinkParking.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) FindNearestAvailable(ctx context.Context, req *FindNearestAvailableRequest) (*FindNearestAvailableResponse, error) {
	res, err := c.findNearestAvailable.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}
