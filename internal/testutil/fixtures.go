// Package testutil holds raw table fixtures shared by package tests.
package testutil

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

// RawTables is a small Ergast-shaped corpus. Result 5 has no position,
// result 7 points at an unknown race, result 8 at an unknown driver and
// result 9 at an unknown constructor.
var RawTables = map[string]string{
	"drivers.csv": "driverId,driverRef,number,code,forename,surname,dob,nationality,url\n" +
		`1,hamilton,44,HAM,Lewis,Hamilton,1985-01-07,British,http://en.wikipedia.org/wiki/Lewis_Hamilton` + "\n" +
		`2,max_verstappen,33,VER,Max,Verstappen,1997-09-30,Dutch,http://en.wikipedia.org/wiki/Max_Verstappen` + "\n" +
		`3,leclerc,16,LEC,Charles,Leclerc,1997-10-16,Monegasque,http://en.wikipedia.org/wiki/Charles_Leclerc` + "\n" +
		`4,bottas,77,BOT,Valtteri,Bottas,1989-08-28,Finnish,http://en.wikipedia.org/wiki/Valtteri_Bottas` + "\n",
	"constructors.csv": "constructorId,constructorRef,name,nationality,url\n" +
		"131,mercedes,Mercedes,German,http://en.wikipedia.org/wiki/Mercedes-Benz_in_Formula_One\n" +
		"9,red_bull,Red Bull,Austrian,http://en.wikipedia.org/wiki/Red_Bull_Racing\n" +
		"6,ferrari,Ferrari,Italian,http://en.wikipedia.org/wiki/Scuderia_Ferrari\n",
	"circuits.csv": "circuitId,circuitRef,name,location,country,lat,lng,alt,url\n" +
		"9,silverstone,Silverstone Circuit,Silverstone,UK,52.0786,-1.01694,153,http://en.wikipedia.org/wiki/Silverstone_Circuit\n" +
		"14,monza,Autodromo Nazionale di Monza,Monza,Italy,45.6156,9.28111,162,http://en.wikipedia.org/wiki/Autodromo_Nazionale_Monza\n" +
		`6,monaco,Circuit de Monaco,Monte-Carlo,Monaco,43.7347,7.42056,7,http://en.wikipedia.org/wiki/Circuit_de_Monaco` + "\n",
	"races.csv": "raceId,year,round,circuitId,name,date,time,url\n" +
		`1000,2019,10,9,British Grand Prix,2019-07-14,13:10:00,http://en.wikipedia.org/wiki/2019_British_Grand_Prix` + "\n" +
		`1001,2019,14,14,Italian Grand Prix,2019-09-08,13:10:00,http://en.wikipedia.org/wiki/2019_Italian_Grand_Prix` + "\n" +
		`800,2009,6,6,Monaco Grand Prix,2009-05-24,12:00:00,http://en.wikipedia.org/wiki/2009_Monaco_Grand_Prix` + "\n",
	"results.csv": "resultId,raceId,driverId,constructorId,number,grid,position,positionText,positionOrder,points,laps,time,milliseconds,fastestLap,rank,fastestLapTime,fastestLapSpeed,statusId\n" +
		`1,1000,1,131,44,1,1,1,1,26,52,1:21:08.452,4868452,52,1,1:27.369,242.780,1` + "\n" +
		`2,1000,2,9,33,4,2,2,2,18,52,+24.928,4893380,44,2,1:28.032,240.951,1` + "\n" +
		`3,1000,3,6,16,3,3,3,3,15,52,+30.117,4898569,\N,\N,\N,\N,1` + "\n" +
		`4,1001,3,6,16,1,1,1,1,25,53,1:15:26.665,4526665,43,1,1:22.004,254.329,1` + "\n" +
		`5,1001,1,131,44,3,\N,R,\N,0,27,\N,\N,\N,\N,\N,\N,4` + "\n" +
		`6,1001,2,9,33,19,5,5,5,10,53,+47.543,4574208,51,3,1:22.335,253.306,1` + "\n" +
		`7,2000,1,131,44,1,1,1,1,25,53,1:15:00.000,4500000,40,1,1:22.000,254.000,1` + "\n" +
		`8,1001,99,131,10,8,6,6,6,8,53,+50.000,4576665,40,5,1:23.000,252.000,1` + "\n" +
		`9,1001,2,77,11,9,4,4,4,12,53,+45.000,4571665,40,4,1:23.100,251.000,1` + "\n" +
		`10,1000,4,131,77,2,4,4,4,12,52,+35.000,4903452,50,3,1:28.300,240.000,1` + "\n" +
		`11,800,4,131,77,5,1,1,1,10,78,1:40:44.282,6044282,50,1,1:14.902,160.000,1` + "\n" +
		`12,800,1,9,22,4,2,2,2,8,78,+7.666,6051948,60,2,1:15.100,159.000,1` + "\n",
}

// WriteRawTables writes RawTables into a fresh temp dir and returns it
func WriteRawTables(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range RawTables {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

// QuietLogger returns a logger that discards everything
func QuietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
