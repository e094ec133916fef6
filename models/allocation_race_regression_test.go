package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
)

// Two writers race for the same remaining ordered quantity. Row locks on the
// item rows must serialize them so exactly one allocation lands and the loser
// gets CapacityExceeded, never a double-booked order item.
func TestConcurrentAllocationsExactlyOneWins(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "fulfillment_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetUsernameInContext(ctx, "test@local")

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  "Race Test Biz",
		Email: "owner@test.local",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	ctx = utils.SetBusinessIdInContext(ctx, biz.ID.String())

	widget, err := models.CreateProduct(ctx, &models.NewProduct{
		Name: "Widget",
		Sku:  "WID-001",
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	acme, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Acme"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	po, err := models.CreatePurchaseOrder(ctx, &models.NewPurchaseOrder{
		CustomerId:  acme.ID,
		OrderNumber: "PO-RACE-1",
		OrderDate:   time.Now(),
		Details: []models.NewPurchaseOrderDetail{
			{ProductId: widget.ID, OrderedQty: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}

	// Two receipts so both writers target the same order item through
	// distinct delivery items and pair uniqueness never gets in the way.
	var receipts [2]*models.DeliveryReceipt
	for i := range receipts {
		dr, err := models.CreateDeliveryReceipt(ctx, &models.NewDeliveryReceipt{
			CustomerId:    acme.ID,
			ReceiptNumber: fmt.Sprintf("DR-RACE-%d", i+1),
			ReceiptDate:   time.Now(),
			Details: []models.NewDeliveryReceiptDetail{
				{ProductId: widget.ID, DeliveredQty: decimal.NewFromInt(8)},
			},
		})
		if err != nil {
			t.Fatalf("CreateDeliveryReceipt %d: %v", i+1, err)
		}
		receipts[i] = dr
	}

	// Both ask for 8 against an ordered qty of 10. Only one can fit.
	var wg sync.WaitGroup
	outcomes := make([]models.AllocationResult, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results, err := models.CommitAllocations(ctx, []models.NewAllocation{
				{
					DeliveryItemId: receipts[i].Details[0].ID,
					PoItemId:       po.Details[0].ID,
					Qty:            decimal.NewFromInt(8),
				},
			})
			if err != nil {
				errs[i] = err
				return
			}
			outcomes[i] = results[0]
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("CommitAllocations writer %d: %v", i, err)
		}
	}

	winners := 0
	for i, r := range outcomes {
		if r.Success {
			winners++
			continue
		}
		if r.FailureKind != models.CapacityExceeded {
			t.Fatalf("writer %d: expected CapacityExceeded for the loser, got %s (%s)", i, r.FailureKind, r.Reason)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d (outcomes %+v)", winners, outcomes)
	}

	// Source of truth: the order item has exactly 8 allocated, 2 remaining.
	remaining, err := models.ComputeOrderItemCapacity(ctx, po.Details[0].ID)
	if err != nil {
		t.Fatalf("ComputeOrderItemCapacity: %v", err)
	}
	if remaining.Cmp(decimal.NewFromInt(2)) != 0 {
		t.Fatalf("expected remaining ordered qty 2, got %s", remaining.String())
	}

	status, err := models.GetPurchaseOrderStatus(ctx, po.ID)
	if err != nil {
		t.Fatalf("GetPurchaseOrderStatus: %v", err)
	}
	if status != models.FulfillmentStatusPartial {
		t.Fatalf("expected Partial order status, got %s", status)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("fulfillment-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("fulfillment-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=fulfillment_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
