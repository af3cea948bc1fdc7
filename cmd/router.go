package main

import (
	"net/http"

	"github.com/angeloszaimis/campus-gateway/internal/handler"
	"github.com/angeloszaimis/campus-gateway/pkg/logger"
)

const apiPrefix = "/api/"

func setupRouter(g *gateway) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle(apiPrefix, handler.NewGatewayHandler(logger.Component(g.log, "gateway"), g.client, apiPrefix))
	mux.Handle("/status", handler.NewStatusHandler(g.coordinator, g.tracker))
	mux.HandleFunc("/metrics", g.collector.Handler())

	return mux
}
