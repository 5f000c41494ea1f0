package service

import (
	"color_academy_backend/internal/gateway"
	"color_academy_backend/pkg/monitoring"
	"context"
)

// FormulaRequest 保存配方
type FormulaRequest struct {
	Name        string  `json:"name" binding:"required,max=100"`
	Brand       string  `json:"brand" binding:"max=100"`
	BaseLevel   int     `json:"baseLevel" binding:"min=1,max=10"`
	TargetLevel int     `json:"targetLevel" binding:"min=1,max=10"`
	Developer   int     `json:"developer" binding:"oneof=0 10 20 30 40"`
	MixRatio    string  `json:"mixRatio" binding:"max=20"`
	Tone        string  `json:"tone" binding:"max=50"`
	Grams       float64 `json:"grams" binding:"min=0"`
	Notes       string  `json:"notes"`
}

// SolverRequest 求解器的一次输入与前端计算出的结果
type SolverRequest struct {
	StartLevel  int    `json:"startLevel" binding:"min=1,max=10"`
	TargetLevel int    `json:"targetLevel" binding:"min=1,max=10"`
	Undertone   string `json:"undertone" binding:"max=50"`
	Result      string `json:"result"`
}

// FormulaService 配方与求解记录，读写都经过网关并限定在当前用户
type FormulaService struct {
	Gateway gateway.Gateway
}

func NewFormulaService(gw gateway.Gateway) *FormulaService {
	return &FormulaService{Gateway: gw}
}

func (s *FormulaService) ListFormulas(ctx context.Context, userID uint) ([]gateway.Record, error) {
	return s.read(ctx, gateway.CollectionSavedFormulas, userID)
}

func (s *FormulaService) SaveFormula(ctx context.Context, userID uint, req *FormulaRequest) (gateway.Ack, error) {
	return s.write(ctx, gateway.CollectionSavedFormulas, gateway.Record{
		"userId":      userID,
		"name":        req.Name,
		"brand":       req.Brand,
		"baseLevel":   req.BaseLevel,
		"targetLevel": req.TargetLevel,
		"developer":   req.Developer,
		"mixRatio":    req.MixRatio,
		"tone":        req.Tone,
		"grams":       req.Grams,
		"notes":       req.Notes,
	})
}

func (s *FormulaService) ListSolverEntries(ctx context.Context, userID uint) ([]gateway.Record, error) {
	return s.read(ctx, gateway.CollectionSolver, userID)
}

func (s *FormulaService) SaveSolverEntry(ctx context.Context, userID uint, req *SolverRequest) (gateway.Ack, error) {
	return s.write(ctx, gateway.CollectionSolver, gateway.Record{
		"userId":      userID,
		"startLevel":  req.StartLevel,
		"targetLevel": req.TargetLevel,
		"undertone":   req.Undertone,
		"result":      req.Result,
	})
}

// 网关错误原样返回
func (s *FormulaService) read(ctx context.Context, collection string, userID uint) ([]gateway.Record, error) {
	records, err := s.Gateway.Read(ctx, collection, gateway.Filter{"userId": userID})
	if err != nil {
		monitoring.GatewayErrors.WithLabelValues(collection, "read").Inc()
		return nil, err
	}
	return records, nil
}

func (s *FormulaService) write(ctx context.Context, collection string, rec gateway.Record) (gateway.Ack, error) {
	ack, err := s.Gateway.Write(ctx, collection, rec)
	if err != nil {
		monitoring.GatewayErrors.WithLabelValues(collection, "write").Inc()
		return gateway.Ack{}, err
	}
	return ack, nil
}
