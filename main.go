package main

import (
	"context"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"finco/txcoordinator/common"
	"finco/txcoordinator/coordinator"
	"finco/txcoordinator/gateways"
	"finco/txcoordinator/operations"
	"finco/txcoordinator/routes"
)

var ginLambda *ginadapter.GinLambda

// setup complete app routers
func setupRouter() *gin.Engine {

	router := gin.Default()

	common.SetupCustomValidators()

	router.Use(common.CORSMiddleware())

	routes.RouteHandler(router)

	return router
}

func setupCoordinator() {
	cfg := common.Config()
	env := common.ENV()

	db := gateways.ConnectDB()

	coord := coordinator.New(
		&gateways.MongoWalletStore{Col: db.Wallets},
		&gateways.MongoProposalStore{Col: db.Proposals},
		&gateways.MongoAuditStore{Col: db.Audit},
		gateways.NewHTTPBroadcaster(cfg.Broadcast, env.BroadcastAccessToken),
		cfg,
	)
	operations.Setup(coord)

	routes.SetupGuard(&coordinator.Guard{
		Store: gateways.NewRedisIdempotencyStore(),
		TTL:   cfg.IdempotencyTTL(),
	})
}

func main() {

	setupCoordinator()

	if common.ENV().GinMode == "release" {
		fmt.Println("running aws lambda in aws")
		g := setupRouter()
		ginLambda = ginadapter.New(g)
		lambda.Start(AWSHandler)
	} else {
		listenAddress := ":" + common.Config().Server.Port
		log.Info(fmt.Sprintf("** Service Started on Port %s **", listenAddress))
		log.Fatal(http.ListenAndServe(listenAddress, setupRouter()))
	}
}

func AWSHandler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return ginLambda.ProxyWithContext(ctx, request)
}
