package api

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.WorkerInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)

	// both spellings are in use by existing dashboards
	s.router.GET("/live_image", s.deviceHandler.LiveImage)
	s.router.GET("/live_image/", s.deviceHandler.LiveImage)

	devices := s.router.Group("/devices")
	{
		devices.GET("", s.deviceHandler.ListDevices)
		devices.GET("/:index", s.deviceHandler.GetDevice)
		devices.GET("/:index/snapshot", s.deviceHandler.Snapshot)
		devices.GET("/:index/stream", s.deviceHandler.Stream)
		devices.GET("/:index/segments", s.deviceHandler.ListSegments)
	}

	system := s.router.Group("/system")
	{
		system.GET("/stats", s.systemHandler.GetStats)
	}
}
