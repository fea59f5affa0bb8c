package router

import (
	"net/http"

	"homebids/internal/controller"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(c *controller.Controller) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/ping", c.Ping)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/missions", c.NewMission)
	mux.HandleFunc("GET /api/missions", c.ListMissions)
	mux.HandleFunc("GET /api/missions/{missionId}", c.GetMission)
	mux.HandleFunc("PUT /api/missions/{missionId}/status", c.SetMissionStatus)

	mux.HandleFunc("POST /api/missions/{missionId}/bids", c.NewBid)
	mux.HandleFunc("GET /api/missions/{missionId}/bids", c.MissionBids)
	mux.HandleFunc("GET /api/bids/my", c.MyBids)
	mux.HandleFunc("GET /api/bids/{bidId}", c.GetBid)
	mux.HandleFunc("PUT /api/bids/{bidId}/considering", c.ConsiderBid)
	mux.HandleFunc("PUT /api/bids/{bidId}/accept", c.AcceptBid)
	mux.HandleFunc("PUT /api/bids/{bidId}/reject", c.RejectBid)
	mux.HandleFunc("PUT /api/bids/{bidId}/viewed", c.ViewBid)
	mux.HandleFunc("POST /api/bids/{bidId}/refund", c.RefundBid)

	mux.HandleFunc("GET /api/missions/{missionId}/conversations/{contractorId}", c.GetConversation)
	mux.HandleFunc("GET /api/missions/{missionId}/conversations/{contractorId}/can_send", c.CanSend)
	mux.HandleFunc("POST /api/missions/{missionId}/conversations/{contractorId}/messages", c.SendMessage)
	mux.HandleFunc("PUT /api/missions/{missionId}/conversations/{contractorId}/read", c.MarkRead)

	mux.HandleFunc("GET /api/credits/balance", c.Balance)
	mux.HandleFunc("GET /api/credits/ledger", c.Ledger)

	mux.HandleFunc("POST /api/missions/{missionId}/reviews", c.NewReview)
	mux.HandleFunc("DELETE /api/reviews/{reviewId}", c.DeleteReview)
	mux.HandleFunc("GET /api/contractors/ranking", c.Ranking)
	mux.HandleFunc("GET /api/contractors/{contractorId}/ratings", c.ContractorRatings)
	mux.HandleFunc("GET /api/contractors/{contractorId}/reviews", c.ContractorReviews)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("page not found"))
	})

	cors := http.NewServeMux()
	cors.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+controller.HeaderActorId+", "+controller.HeaderActorRole)
		w.Header().Set("Accept", "*/*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
		} else {
			mux.ServeHTTP(w, r)
		}
	})

	return cors
}
