package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/vinin2308/foodflow-cardapio/realtime"
	"github.com/vinin2308/foodflow-cardapio/services"
	"github.com/vinin2308/foodflow-cardapio/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// customers connect from their own phones, origin is not a gate here
		return true
	},
}

type ComandaWSController struct {
	Service *services.TabService
	Hub     *realtime.Hub
}

func NewComandaWSController(service *services.TabService, hub *realtime.Hub) *ComandaWSController {
	return &ComandaWSController{Service: service, Hub: hub}
}

// wsItemCommand is what a connected customer may send: a single item
// mutation against their comanda family.
type wsItemCommand struct {
	Action string `json:"action"`
	TabID  uint   `json:"tabId"`
	Item   struct {
		ItemID     uint   `json:"itemId"`
		MenuItemID uint   `json:"menuItemId"`
		Quantity   int    `json:"quantity"`
		Note       string `json:"note"`
	} `json:"item"`
}

// Serve upgrades the request and keeps the connection in the access code's
// group until the client goes away. The current snapshot is pushed right
// after the upgrade so the client never renders from a stale cache.
func (wc *ComandaWSController) Serve(c *gin.Context) {
	code := c.Param("code")

	snap, err := wc.Service.FamilySnapshot(code)
	if err != nil {
		respondTabError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Printf("websocket upgrade for comanda %s: %v", code, err)
		return
	}

	client := wc.Hub.Subscribe(code, conn)
	defer wc.Hub.Unsubscribe(client)

	client.Send(realtime.Message{Type: realtime.EventTabUpdated, Data: snap})
	utils.InfoLogger.Printf("Subscriber joined comanda %s", code)

	deviceKey := c.GetHeader("X-Device-Key")
	if deviceKey == "" {
		deviceKey = c.Query("device")
	}

	for {
		var cmd wsItemCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.ErrorLogger.Printf("Subscriber of comanda %s dropped: %v", code, err)
			}
			return
		}
		wc.handleCommand(client, code, deviceKey, snap.Principal.ID, cmd)
	}
}

// handleCommand applies one inbound mutation. Failures go back to the
// sending client only; successful mutations reach the whole group through
// the service's publish step.
func (wc *ComandaWSController) handleCommand(client *realtime.Client, code, deviceKey string, principalID uint, cmd wsItemCommand) {
	tabID := cmd.TabID
	if tabID == 0 {
		tabID = principalID
	}

	// a connection may only touch tabs of its own family
	if !wc.tabInFamily(code, tabID) {
		client.Send(realtime.Message{Type: realtime.EventError, Data: gin.H{
			"message": "tab does not belong to this comanda",
		}})
		return
	}

	_, err := wc.Service.MutateItem(services.ItemCommand{
		Action:     cmd.Action,
		TabID:      tabID,
		ItemID:     cmd.Item.ItemID,
		MenuItemID: cmd.Item.MenuItemID,
		Quantity:   cmd.Item.Quantity,
		Note:       cmd.Item.Note,
		ActorKey:   deviceKey,
	})
	if err != nil {
		utils.ErrorLogger.Printf("Comanda %s websocket mutation failed: %v", code, err)
		client.Send(realtime.Message{Type: realtime.EventError, Data: gin.H{"message": err.Error()}})
	}
}

func (wc *ComandaWSController) tabInFamily(code string, tabID uint) bool {
	snap, err := wc.Service.FamilySnapshot(code)
	if err != nil {
		return false
	}
	if snap.Principal.ID == tabID {
		return true
	}
	for _, child := range snap.Children {
		if child.ID == tabID {
			return true
		}
	}
	return false
}
