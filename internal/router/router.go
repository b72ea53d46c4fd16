package router

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"

	"coupon_rush/internal/config"
	"coupon_rush/internal/middleware"
	"coupon_rush/internal/model"
	"coupon_rush/internal/seckill"
	"coupon_rush/internal/shop"
	"coupon_rush/internal/voucher"
)

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, rdb *rd.Client, shops *shop.Service, vouchers *voucher.Service, seckills *seckill.Service, cfg config.AppConfig) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	// Shops
	r.GET("/api/shops/:id", queryShop(shops))
	r.POST("/api/shops", createShop(shops, cfg.AdminToken))
	r.PUT("/api/shops/:id", updateShop(shops, cfg.AdminToken))
	r.POST("/api/shops/warmup/:id", warmUpShop(shops, cfg.AdminToken))

	// Vouchers
	r.GET("/api/vouchers/:id", queryVoucher(vouchers))
	r.POST("/api/vouchers", createVoucher(vouchers, cfg.AdminToken))

	// Seckill
	r.POST("/api/seckill/vouchers/:id",
		middleware.RequireUser(),
		middleware.RedisRateLimit(rdb, cfg.BuyRateLimit, cfg.BuyRateWindow),
		seckillVoucher(seckills))
	r.GET("/api/seckill/vouchers/:id/stock", getVoucherStock(seckills))
	r.GET("/api/orders/:id", middleware.RequireUser(), getOrder(seckills))
}

// parseUintParam 解析路径里的十进制 ID。
func parseUintParam(c *gin.Context, name string) (uint, bool) {
	idStr := c.Param(name)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": name + " 无效"})
		return 0, false
	}
	return uint(id), true
}

// queryShop 查询店铺详情（逻辑过期缓存，可能短暂返回旧值）。
func queryShop(shops *shop.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUintParam(c, "id")
		if !ok {
			return
		}
		s, err := shops.QueryByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		if s == nil {
			c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "店铺不存在"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": s})
	}
}

// createShop 新建店铺（管理接口）。
func createShop(shops *shop.Service, adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Admin-Token") != adminToken {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "admin token 无效"})
			return
		}
		var req struct {
			Name      string `json:"name" binding:"required"`
			Address   string `json:"address"`
			AvgPrice  int64  `json:"avg_price" binding:"omitempty,min=0"`
			Score     int    `json:"score" binding:"omitempty,min=0,max=50"`
			OpenHours string `json:"open_hours"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		s := &model.Shop{
			Name:      req.Name,
			Address:   req.Address,
			AvgPrice:  req.AvgPrice,
			Score:     req.Score,
			OpenHours: req.OpenHours,
		}
		if err := shops.Create(c.Request.Context(), s); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": s})
	}
}

// updateShop 更新店铺：先写库再删缓存。
func updateShop(shops *shop.Service, adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Admin-Token") != adminToken {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "admin token 无效"})
			return
		}
		id, ok := parseUintParam(c, "id")
		if !ok {
			return
		}
		var req struct {
			Name      string `json:"name"`
			Address   string `json:"address"`
			AvgPrice  int64  `json:"avg_price"`
			Score     int    `json:"score"`
			OpenHours string `json:"open_hours"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		s := &model.Shop{
			ID:        id,
			Name:      req.Name,
			Address:   req.Address,
			AvgPrice:  req.AvgPrice,
			Score:     req.Score,
			OpenHours: req.OpenHours,
		}
		if err := shops.Update(c.Request.Context(), s); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "更新成功"})
	}
}

// warmUpShop 把店铺预热进缓存（逻辑过期编码）。
func warmUpShop(shops *shop.Service, adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Admin-Token") != adminToken {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "admin token 无效"})
			return
		}
		id, ok := parseUintParam(c, "id")
		if !ok {
			return
		}
		if err := shops.WarmUp(c.Request.Context(), id); err != nil {
			if errors.Is(err, shop.ErrShopNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "预热成功"})
	}
}

// queryVoucher 查询券详情（读穿透缓存；Stock 字段仅供展示）。
func queryVoucher(vouchers *voucher.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUintParam(c, "id")
		if !ok {
			return
		}
		v, err := vouchers.QueryByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		if v == nil {
			c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "优惠券不存在"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": v})
	}
}

// createVoucher 创建秒杀券（含时间窗校验）。
func createVoucher(vouchers *voucher.Service, adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Admin-Token") != adminToken {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "admin token 无效"})
			return
		}
		var req struct {
			ShopID      uint   `json:"shop_id" binding:"required,min=1"`
			Title       string `json:"title" binding:"required"`
			PayValue    int64  `json:"pay_value" binding:"required,min=1"`
			ActualValue int64  `json:"actual_value" binding:"required,min=1"`
			Stock       int64  `json:"stock" binding:"required,min=1"`
			BeginTime   string `json:"begin_time" binding:"required"`
			EndTime     string `json:"end_time" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		begin, err := time.Parse(time.RFC3339, req.BeginTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "begin_time 格式错误，请用 RFC3339"})
			return
		}
		end, err := time.Parse(time.RFC3339, req.EndTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "end_time 格式错误，请用 RFC3339"})
			return
		}
		if !end.After(begin) {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "end_time 必须晚于 begin_time"})
			return
		}
		v := &model.Voucher{
			ShopID:      req.ShopID,
			Title:       req.Title,
			PayValue:    req.PayValue,
			ActualValue: req.ActualValue,
			Stock:       req.Stock,
			BeginTime:   begin,
			EndTime:     end,
		}
		if err := vouchers.Create(c.Request.Context(), v); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": v})
	}
}

// seckillVoucher 秒杀下单入口。业务拒绝统一返回 400 + 原因文案，
// 只有存储/传输类失败才是 500。
func seckillVoucher(seckills *seckill.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		voucherID, ok := parseUintParam(c, "id")
		if !ok {
			return
		}
		userID, ok := middleware.UserIDFrom(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "缺少有效的用户身份"})
			return
		}

		orderID, err := seckills.SeckillVoucher(c.Request.Context(), userID, voucherID)
		if err != nil {
			switch {
			case errors.Is(err, seckill.ErrVoucherNotFound):
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": err.Error()})
			case errors.Is(err, seckill.ErrNotStarted),
				errors.Is(err, seckill.ErrEnded),
				errors.Is(err, seckill.ErrSoldOut),
				errors.Is(err, seckill.ErrDuplicateRequest),
				errors.Is(err, seckill.ErrAlreadyPurchased):
				c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"code": 0,
			"data": gin.H{"order_id": strconv.FormatUint(orderID, 10)},
		})
	}
}

// getVoucherStock 实时库存查询（直连 DB），压测后校验用。
func getVoucherStock(seckills *seckill.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		voucherID, ok := parseUintParam(c, "id")
		if !ok {
			return
		}
		stock, err := seckills.GetStock(c.Request.Context(), voucherID)
		if err != nil {
			if errors.Is(err, seckill.ErrVoucherNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"stock": stock}})
	}
}

// getOrder 查询自己的订单。别人的订单按不存在处理。
func getOrder(seckills *seckill.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.Param("id")
		orderID, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil || orderID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "id 无效"})
			return
		}
		userID, ok := middleware.UserIDFrom(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "缺少有效的用户身份"})
			return
		}
		order, err := seckills.GetOrder(c.Request.Context(), orderID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		if order == nil || order.UserID != userID {
			c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "订单不存在"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": order})
	}
}
